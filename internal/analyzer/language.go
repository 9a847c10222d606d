package analyzer

import (
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// LanguageDetector maps file extensions to language names and
// classifies which files count as code for size metrics.
type LanguageDetector struct {
	extensionMap map[string]string
	codeExts     map[string]bool
}

// NewLanguageDetector seeds the known extension tables.
func NewLanguageDetector() *LanguageDetector {
	ld := &LanguageDetector{
		extensionMap: map[string]string{
			".js":     "JavaScript",
			".jsx":    "JavaScript",
			".ts":     "TypeScript",
			".tsx":    "TypeScript",
			".py":     "Python",
			".java":   "Java",
			".c":      "C",
			".cpp":    "C++",
			".cc":     "C++",
			".cxx":    "C++",
			".cs":     "C#",
			".php":    "PHP",
			".rb":     "Ruby",
			".go":     "Go",
			".rs":     "Rust",
			".swift":  "Swift",
			".kt":     "Kotlin",
			".scala":  "Scala",
			".clj":    "Clojure",
			".hs":     "Haskell",
			".elm":    "Elm",
			".dart":   "Dart",
			".r":      "R",
			".m":      "Objective-C",
			".mm":     "Objective-C++",
			".pl":     "Perl",
			".lua":    "Lua",
			".sh":     "Shell",
			".bash":   "Shell",
			".ps1":    "PowerShell",
			".sql":    "SQL",
			".html":   "HTML",
			".css":    "CSS",
			".scss":   "SCSS",
			".less":   "Less",
			".vue":    "Vue",
			".svelte": "Svelte",
		},
		codeExts: make(map[string]bool),
	}
	for _, ext := range []string{
		".js", ".jsx", ".ts", ".tsx", ".py", ".java", ".c", ".cpp", ".cs",
		".php", ".rb", ".go", ".rs", ".swift", ".kt", ".scala", ".hs",
		".dart", ".vue", ".svelte", ".html", ".css", ".scss", ".less",
	} {
		ld.codeExts[ext] = true
	}
	return ld
}

// Detect returns the language for a file name, or "" when the extension is unknown.
func (ld *LanguageDetector) Detect(name string) string {
	return ld.extensionMap[GetFileExtension(name)]
}

// IsCode reports whether the file counts toward code size metrics.
func (ld *LanguageDetector) IsCode(name string) bool {
	return ld.codeExts[GetFileExtension(name)]
}

// languageTally accumulates line counts per language and remembers
// first-seen order so ties resolve deterministically.
type languageTally struct {
	order []string
	lines map[string]int
}

func newLanguageTally() *languageTally {
	return &languageTally{lines: make(map[string]int)}
}

func (t *languageTally) add(language string, lines int) {
	if _, ok := t.lines[language]; !ok {
		t.order = append(t.order, language)
	}
	t.lines[language] += lines
}

// primary returns the language with the most lines; earlier languages win ties.
func (t *languageTally) primary() string {
	best := domain.UnknownLanguage
	bestLines := -1
	for _, lang := range t.order {
		if t.lines[lang] > bestLines {
			best = lang
			bestLines = t.lines[lang]
		}
	}
	return best
}
