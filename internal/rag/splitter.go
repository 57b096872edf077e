package rag

import "strings"

// Splitter breaks documents into overlapping chunks, preferring to cut
// on paragraph and sentence boundaries before falling back to words and
// raw characters.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter() *Splitter {
	return &Splitter{ChunkSize: 500, Overlap: 50}
}

var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split returns the chunks of text. Empty chunks are discarded.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, chunk := range s.split(text, separators) {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *Splitter) split(text string, seps []string) []string {
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	sep := seps[len(seps)-1]
	rest := seps
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		for len(text) > s.ChunkSize {
			parts = append(parts, text[:s.ChunkSize])
			text = text[s.ChunkSize-s.Overlap:]
		}
		parts = append(parts, text)
		return parts
	}

	pieces := strings.Split(text, sep)
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		if len(chunk) > s.ChunkSize {
			parts = append(parts, s.split(chunk, rest)...)
		} else {
			parts = append(parts, chunk)
		}
		// Keep a tail of the chunk as overlap for the next one.
		tail := chunk
		if len(tail) > s.Overlap {
			tail = tail[len(tail)-s.Overlap:]
		}
		current.Reset()
		current.WriteString(tail)
	}

	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(sep)+len(piece) > s.ChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunk := current.String()
		if len(chunk) > s.ChunkSize {
			parts = append(parts, s.split(chunk, rest)...)
		} else {
			parts = append(parts, chunk)
		}
	}
	return parts
}
