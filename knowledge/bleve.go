package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveIndex implements Knowledge on a bleve full-text index. With an empty
// path the index lives in memory, which the tests rely on.
type BleveIndex struct {
	path    string
	index   bleve.Index
	pending []Document
}

// IndexExists reports whether a persisted index is present at path.
func IndexExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// NewBleveIndex opens the index at path, creating it when absent.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create index at %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", path, err)
	}
	return &BleveIndex{path: path, index: index}, nil
}

func buildMapping() mapping.IndexMapping {
	contentMapping := bleve.NewTextFieldMapping()
	contentMapping.Analyzer = "en"
	contentMapping.Store = true

	sourceMapping := bleve.NewTextFieldMapping()
	sourceMapping.Store = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentMapping)
	docMapping.AddFieldMappingsAt("source", sourceMapping)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = docMapping
	return m
}

// Add queues documents for indexing on the next Load call.
func (b *BleveIndex) Add(docs ...Document) {
	b.pending = append(b.pending, docs...)
}

// Load indexes all queued documents in one batch.
func (b *BleveIndex) Load(_ context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, doc := range b.pending {
		id := doc.ID
		if id == "" {
			h := sha256.Sum256([]byte(doc.Content))
			id = fmt.Sprintf("%x", h[:16])
		}
		fields := map[string]any{"content": doc.Content}
		if src, ok := doc.Metadata["source"].(string); ok {
			fields["source"] = src
		}
		if err := batch.Index(id, fields); err != nil {
			return fmt.Errorf("batch index %s: %w", id, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	b.pending = nil
	return nil
}

// Search runs a match query and returns the top-k scored documents with
// their stored content.
func (b *BleveIndex) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 3
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), topK, 0, false)
	req.Fields = []string{"content", "source"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc := Document{ID: hit.ID, Score: hit.Score}
		if content, ok := hit.Fields["content"].(string); ok {
			doc.Content = content
		}
		if src, ok := hit.Fields["source"].(string); ok {
			doc.Metadata = map[string]any{"source": src}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close releases the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
