package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTopK   = 3
	indexCacheCap = 32
)

// Retriever answers context lookups against per-customer indexes. Loaded
// indexes are cached with LRU eviction and loads are deduplicated so a
// burst of sessions for one customer reads the file once.
type Retriever struct {
	dataDir  string
	embedder Embedder
	topK     int

	mu    sync.Mutex
	cache map[string]*Index
	order []string

	loads singleflight.Group
}

func NewRetriever(dataDir string, embedder Embedder) *Retriever {
	return &Retriever{
		dataDir:  dataDir,
		embedder: embedder,
		topK:     defaultTopK,
		cache:    make(map[string]*Index),
	}
}

// Context returns formatted knowledge base context for a query, or the
// empty string when the customer has no knowledge base.
func (r *Retriever) Context(ctx context.Context, customerID, query string) (string, error) {
	if r.embedder == nil {
		return "", nil
	}
	idx, err := r.index(customerID)
	if err != nil {
		return "", err
	}
	if len(idx.Entries) == 0 {
		return "", nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	matches := idx.Search(vectors[0], r.topK)
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]: %s", m.Source, m.Content)
	}
	return b.String(), nil
}

// Invalidate drops a customer's cached index so the next lookup reloads
// it from disk. Call it after ingesting or deleting documents.
func (r *Retriever) Invalidate(customerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[customerID]; !ok {
		return
	}
	delete(r.cache, customerID)
	for i, id := range r.order {
		if id == customerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Retriever) index(customerID string) (*Index, error) {
	r.mu.Lock()
	if idx, ok := r.cache[customerID]; ok {
		r.touch(customerID)
		r.mu.Unlock()
		return idx, nil
	}
	r.mu.Unlock()

	v, err, _ := r.loads.Do(customerID, func() (any, error) {
		idx, err := LoadIndex(r.dataDir, customerID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.store(customerID, idx)
		r.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// store and touch assume r.mu is held.
func (r *Retriever) store(customerID string, idx *Index) {
	if _, ok := r.cache[customerID]; !ok {
		r.order = append(r.order, customerID)
	}
	r.cache[customerID] = idx
	r.touch(customerID)
	for len(r.order) > indexCacheCap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.cache, oldest)
	}
}

func (r *Retriever) touch(customerID string) {
	for i, id := range r.order {
		if id == customerID {
			r.order = append(append(r.order[:i:i], r.order[i+1:]...), customerID)
			return
		}
	}
}
