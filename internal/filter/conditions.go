package filter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// Fields resolvable by custom conditions.
const (
	FieldName        = "name"
	FieldLanguage    = "language"
	FieldAccessCount = "accessCount"
	FieldTotalFiles  = "totalFiles"
	FieldHasTests    = "hasTests"
	FieldHasCICD     = "hasCicd"
)

// ResolveField returns the value of a condition field: a string, an int or a bool.
// ok is false for unknown fields.
func ResolveField(repo domain.Repository, field string) (value any, ok bool) {
	switch field {
	case FieldName:
		return repo.Name, true
	case FieldLanguage:
		return repo.Metadata.Language, true
	case FieldAccessCount:
		return repo.AccessCount, true
	case FieldTotalFiles:
		return repo.Metadata.ProjectSize.TotalFiles, true
	case FieldHasTests:
		return repo.Metadata.HasTests, true
	case FieldHasCICD:
		return repo.Metadata.HasCICD, true
	default:
		return nil, false
	}
}

// Evaluate applies a single custom condition. Unknown fields or operators and
// operand type mismatches evaluate to false.
func Evaluate(repo domain.Repository, c domain.CustomCondition) bool {
	return compileCondition(c).eval(repo)
}

type condition struct {
	domain.CustomCondition
	pattern *regexp.Regexp
}

func compileCondition(c domain.CustomCondition) condition {
	cond := condition{CustomCondition: c}
	if c.Operator != domain.OpRegex {
		return cond
	}

	expr, ok := c.Value.(string)
	if !ok {
		return cond
	}
	if !cond.caseSensitive() {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		slog.Debug("Invalid condition pattern", "field", c.Field, "pattern", c.Value, "error", err)
		return cond
	}
	cond.pattern = re
	return cond
}

func (c condition) caseSensitive() bool {
	return c.CaseSensitive == nil || *c.CaseSensitive
}

func (c condition) eval(repo domain.Repository) bool {
	value, ok := ResolveField(repo, c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case domain.OpEquals:
		return c.equals(value)
	case domain.OpContains:
		return c.compareText(value, strings.Contains)
	case domain.OpStartsWith:
		return c.compareText(value, strings.HasPrefix)
	case domain.OpEndsWith:
		return c.compareText(value, strings.HasSuffix)
	case domain.OpRegex:
		s, isString := value.(string)
		return isString && c.pattern != nil && c.pattern.MatchString(s)
	case domain.OpGreaterThan:
		return c.compareNumber(value, func(a, b float64) bool { return a > b })
	case domain.OpLessThan:
		return c.compareNumber(value, func(a, b float64) bool { return a < b })
	default:
		return false
	}
}

func (c condition) equals(value any) bool {
	switch v := value.(type) {
	case string:
		operand, ok := c.Value.(string)
		if !ok {
			return false
		}
		if c.caseSensitive() {
			return v == operand
		}
		return strings.EqualFold(v, operand)
	case int:
		operand, ok := toNumber(c.Value)
		return ok && float64(v) == operand
	case bool:
		operand, ok := c.Value.(bool)
		return ok && v == operand
	default:
		return false
	}
}

// compareText requires a string field; the operand is rendered as text.
func (c condition) compareText(value any, op func(s, substr string) bool) bool {
	s, ok := value.(string)
	if !ok || c.Value == nil {
		return false
	}
	operand := fmt.Sprint(c.Value)
	if !c.caseSensitive() {
		s, operand = strings.ToLower(s), strings.ToLower(operand)
	}
	return op(s, operand)
}

// compareNumber requires a numeric field and an operand convertible to a number.
func (c condition) compareNumber(value any, op func(a, b float64) bool) bool {
	n, ok := value.(int)
	if !ok {
		return false
	}
	operand, ok := toNumber(c.Value)
	return ok && op(float64(n), operand)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
