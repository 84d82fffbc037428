package session

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// SearchHit is one transcript search result.
type SearchHit struct {
	SessionID string
	Score     float64
	Snippet   string
}

// SearchIndex provides full-text search over conversation transcripts.
// Documents are keyed by session id; re-indexing a session replaces its
// previous document.
type SearchIndex struct {
	index bleve.Index
}

// OpenSearchIndex creates or opens the transcript index at indexPath.
func OpenSearchIndex(indexPath string) (*SearchIndex, error) {
	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildSearchMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create transcript index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open transcript index: %w", err)
	}
	return &SearchIndex{index: index}, nil
}

func buildSearchMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	docMapping.AddFieldMappingsAt("session_id", idField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	docMapping.AddFieldMappingsAt("transcript", textField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Index (re-)indexes a session's transcript.
func (si *SearchIndex) Index(sess *Session) error {
	var sb strings.Builder
	for _, msg := range sess.Messages {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	doc := map[string]interface{}{
		"session_id": sess.ID,
		"transcript": sb.String(),
	}
	return si.index.Index(sess.ID, doc)
}

// Remove drops a session's transcript from the index.
func (si *SearchIndex) Remove(sessionID string) error {
	return si.index.Delete(sessionID)
}

// Search returns the top limit sessions whose transcript matches query.
func (si *SearchIndex) Search(query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("transcript")

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"transcript"}

	result, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("transcript search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		h := SearchHit{SessionID: hit.ID, Score: hit.Score}
		if transcript, ok := hit.Fields["transcript"].(string); ok {
			h.Snippet = snippet(transcript, 80)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Close closes the underlying index.
func (si *SearchIndex) Close() error {
	return si.index.Close()
}

func snippet(text string, max int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
