// Package chunk splits extracted document text into overlapping segments
// sized for embedding. Splitting walks a separator hierarchy (paragraph,
// line, sentence, word, character) so segments stay semantically coherent,
// and is fully deterministic.
package chunk

import "strings"

const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 400
)

var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Split returns the ordered segment sequence for text. Empty or
// whitespace-only input yields no segments.
func Split(text string) []string {
	return NewSplitter().Split(text)
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := s.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = defaultSeparators
	}
	return split(text, seps, size, overlap)
}

func split(text string, separators []string, size, overlap int) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, cand := range separators {
		if cand == "" || strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		for _, p := range strings.Split(text, sep) {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}

	var chunks []string
	var pending []string
	for _, part := range parts {
		if len([]rune(part)) <= size {
			pending = append(pending, part)
			continue
		}
		// piece is too large for one chunk: flush what we have, then
		// recurse with the finer separators
		if len(pending) > 0 {
			chunks = append(chunks, merge(pending, sep, size, overlap)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, part)
		} else {
			chunks = append(chunks, split(part, rest, size, overlap)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, merge(pending, sep, size, overlap)...)
	}
	return chunks
}

// merge greedily packs parts into chunks of at most size runes, carrying the
// trailing parts of each chunk (up to overlap runes) into the next one.
func merge(parts []string, sep string, size, overlap int) []string {
	sepLen := len([]rune(sep))

	var chunks []string
	var current []string
	total := 0
	for _, part := range parts {
		partLen := len([]rune(part))
		if len(current) > 0 && total+partLen+sepLen*len(current) > size {
			chunks = append(chunks, strings.Join(current, sep))
			for len(current) > 0 &&
				(total > overlap || total+partLen+sepLen*len(current) > size) {
				total -= len([]rune(current[0]))
				current = current[1:]
			}
		}
		current = append(current, part)
		total += partLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}
