package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Ingestor embeds documents and appends them to per-customer indexes.
type Ingestor struct {
	mu       sync.Mutex
	dataDir  string
	splitter *Splitter
	embedder Embedder
}

func NewIngestor(dataDir string, embedder Embedder) *Ingestor {
	return &Ingestor{
		dataDir:  dataDir,
		splitter: NewSplitter(),
		embedder: embedder,
	}
}

// IngestText chunks, embeds and stores one document. It returns the
// number of chunks added.
func (g *Ingestor) IngestText(ctx context.Context, customerID, source, text string) (int, error) {
	if g.embedder == nil {
		return 0, errors.New("embeddings not configured")
	}
	chunks := g.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, errors.New("document is empty")
	}

	vectors, err := g.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed document: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	idx, err := LoadIndex(g.dataDir, customerID)
	if err != nil {
		return 0, err
	}
	for i, chunk := range chunks {
		idx.Entries = append(idx.Entries, Entry{
			Content: chunk,
			Source:  source,
			Vector:  vectors[i],
		})
	}
	if err := SaveIndex(g.dataDir, customerID, idx); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// HasKnowledgeBase reports whether a customer has an ingested index.
func (g *Ingestor) HasKnowledgeBase(customerID string) bool {
	_, err := os.Stat(IndexPath(g.dataDir, customerID))
	return err == nil
}

// Stats summarizes a customer's knowledge base.
func (g *Ingestor) Stats(customerID string) (chunks int, sources []string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, err := LoadIndex(g.dataDir, customerID)
	if err != nil {
		return 0, nil, err
	}
	seen := map[string]bool{}
	for _, e := range idx.Entries {
		if !seen[e.Source] {
			seen[e.Source] = true
			sources = append(sources, e.Source)
		}
	}
	return len(idx.Entries), sources, nil
}

// Delete removes a customer's knowledge base entirely.
func (g *Ingestor) Delete(customerID string) error {
	if customerID == "" {
		return errors.New("customer id is empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	dir := filepath.Dir(IndexPath(g.dataDir, customerID))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}
	return nil
}
