package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Entry is one embedded chunk in a customer's knowledge base.
type Entry struct {
	Content string    `json:"content"`
	Source  string    `json:"source"`
	Vector  []float64 `json:"vector"`
}

// Index is a flat vector index held in memory and persisted as JSON.
type Index struct {
	Entries []Entry `json:"entries"`
}

// Match is one search hit.
type Match struct {
	Content string
	Source  string
	Score   float64
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Search returns the top k entries by cosine similarity, best first.
func (idx *Index) Search(query []float64, k int) []Match {
	matches := make([]Match, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		matches = append(matches, Match{
			Content: e.Content,
			Source:  e.Source,
			Score:   cosine(query, e.Vector),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// IndexPath returns where a customer's index lives under dataDir.
func IndexPath(dataDir, customerID string) string {
	return filepath.Join(dataDir, customerID, "index.json")
}

// LoadIndex reads a customer's index. A missing file yields an empty
// index, not an error.
func LoadIndex(dataDir, customerID string) (*Index, error) {
	raw, err := os.ReadFile(IndexPath(dataDir, customerID))
	if errors.Is(err, os.ErrNotExist) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &idx, nil
}

// SaveIndex persists a customer's index, creating its directory.
func SaveIndex(dataDir, customerID string, idx *Index) error {
	path := IndexPath(dataDir, customerID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	raw, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, path)
}
