package catalog

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// MaxBatchSize is the maximum number of documents per index batch
const MaxBatchSize = 100

// SearchKind selects which repository fields a search looks at.
type SearchKind string

const (
	SearchByName      SearchKind = "name"
	SearchByTechStack SearchKind = "techstack"
	SearchAny         SearchKind = "any"
)

// DefaultSearchLimit caps search results when no limit is given
const DefaultSearchLimit = 20

// CreateIndexMapping creates the Bleve mapping for repository documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{
		domain.RepoFieldName,
		domain.RepoFieldLanguage,
		domain.RepoFieldRuntime,
		domain.RepoFieldOwner,
		domain.RepoFieldTechStack,
		domain.RepoFieldTags,
		domain.RepoFieldSections,
	} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = field == domain.RepoFieldName
		docMapping.AddFieldMappingsAt(field, f)
	}

	// Path - keyword, stored
	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	docMapping.AddFieldMappingsAt(domain.RepoFieldPath, pathField)

	// ID - stored but not indexed (we use the document ID)
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.RepoFieldID, idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// newIndex builds an in-memory index over repos.
func newIndex(repos []domain.Repository) (bleve.Index, error) {
	index, err := bleve.NewMemOnly(CreateIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for _, r := range repos {
		doc := domain.NewRepositoryDocument(r)
		if err := batch.Index(doc.ID, doc); err != nil {
			continue
		}
		if batch.Size() >= MaxBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("batch index failed: %w", err)
			}
			batch = index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("final batch index failed: %w", err)
		}
	}
	return index, nil
}

// buildQuery turns a search string into a Bleve query for kind.
func buildQuery(q string, kind SearchKind) query.Query {
	match := func(field string, boost float64) query.Query {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	prefix := func(field string) query.Query {
		pq := bleve.NewPrefixQuery(strings.ToLower(q))
		pq.SetField(field)
		return pq
	}

	switch kind {
	case SearchByName:
		return bleve.NewDisjunctionQuery(match(domain.RepoFieldName, 1), prefix(domain.RepoFieldName))
	case SearchByTechStack:
		return bleve.NewDisjunctionQuery(
			match(domain.RepoFieldTechStack, 1),
			match(domain.RepoFieldLanguage, 2),
			match(domain.RepoFieldRuntime, 2),
		)
	default:
		return bleve.NewDisjunctionQuery(
			match(domain.RepoFieldName, 3),
			prefix(domain.RepoFieldName),
			match(domain.RepoFieldTechStack, 1),
			match(domain.RepoFieldLanguage, 2),
			match(domain.RepoFieldRuntime, 2),
			match(domain.RepoFieldOwner, 1),
			match(domain.RepoFieldTags, 2),
			match(domain.RepoFieldSections, 1),
		)
	}
}
