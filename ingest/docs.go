package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dagger77/tabdoc/knowledge"
)

// LoadDocs parses every .rtf file under docsDir concurrently and indexes the
// extracted text into the knowledge base. Returns the number of documents
// indexed.
func LoadDocs(ctx context.Context, kb *knowledge.BleveIndex, docsDir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(docsDir, "*.rtf"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	var mu sync.Mutex
	docs := make([]knowledge.Document, 0, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", filepath.Base(path), err)
			}
			text := knowledge.RTFToText(string(raw))
			if text == "" {
				return nil
			}
			mu.Lock()
			docs = append(docs, knowledge.Document{
				Content:  text,
				Metadata: map[string]any{"source": filepath.Base(path)},
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	// Keep index ids stable across runs regardless of goroutine finish order.
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Metadata["source"].(string) < docs[j].Metadata["source"].(string)
	})
	kb.Add(docs...)
	if err := kb.Load(ctx); err != nil {
		return 0, fmt.Errorf("index documents: %w", err)
	}
	return len(docs), nil
}
