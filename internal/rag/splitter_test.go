package rag

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter()
	chunks := s.Split("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter()
	if chunks := s.Split("   \n\n  "); len(chunks) != 0 {
		t.Fatalf("chunks = %v, want none", chunks)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := NewSplitter()
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", 20))
		b.WriteString(". ")
	}
	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > s.ChunkSize {
			t.Fatalf("chunk %d length = %d, want <= %d", i, len(chunk), s.ChunkSize)
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := &Splitter{ChunkSize: 80, Overlap: 10}
	para1 := strings.Repeat("alpha ", 10)
	para2 := strings.Repeat("beta ", 10)
	chunks := s.Split(para1 + "\n\n" + para2)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want >= 2", len(chunks))
	}
	if !strings.Contains(chunks[0], "alpha") {
		t.Fatalf("chunks[0] = %q", chunks[0])
	}
	last := chunks[len(chunks)-1]
	if !strings.Contains(last, "beta") {
		t.Fatalf("last chunk = %q", last)
	}
}

func TestSplitHandlesUnbreakableText(t *testing.T) {
	s := &Splitter{ChunkSize: 100, Overlap: 10}
	chunks := s.Split(strings.Repeat("q", 350))
	if len(chunks) < 3 {
		t.Fatalf("len(chunks) = %d, want >= 3", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk %d length = %d", i, len(chunk))
		}
	}
}
