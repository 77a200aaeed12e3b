package ingest

import (
	"fmt"
	"strings"
	"unicode"
)

// BoundaryLookback is how far back (in characters) from a window's end the
// chunker searches for a sentence boundary before cutting.
const BoundaryLookback = 100

// Chunk is one bounded, boundary-aware slice of a document's extracted text.
// Offsets are rune offsets into the original text. Never mutated after
// creation.
type Chunk struct {
	Text     string
	Position int
	Start    int
	End      int
	Overlap  int
}

// Chunker splits text into overlapping windows sized for downstream
// embedding limits. Configuration is validated at construction; overlap must
// be strictly less than the target size.
type Chunker struct {
	targetSize int
	overlap    int
}

func NewChunker(targetSize, overlap int) (*Chunker, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("chunk target size must be positive, got %d", targetSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= targetSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than target size %d", overlap, targetSize)
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}, nil
}

// Split walks the text in windows of the target size. Before cutting a
// window it looks backward up to BoundaryLookback characters for the nearest
// sentence end (./!/? followed by a space, or a paragraph break) and snaps
// the cut just after it. The next window starts at
// max(previous_start + target - overlap, previous_end), which guarantees
// forward progress even when snapping pulls a window's end early.
// Whitespace-only windows are dropped silently.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	if n <= c.targetSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []Chunk{{Text: trimmed, Position: 0, Start: 0, End: n, Overlap: c.overlap}}
	}

	var chunks []Chunk
	start := 0
	for start < n {
		end := start + c.targetSize
		last := end >= n
		if last {
			end = n
		} else {
			end = c.snapToBoundary(runes, start, end)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, Chunk{
				Text:     piece,
				Position: len(chunks),
				Start:    start,
				End:      end,
				Overlap:  c.overlap,
			})
		}
		if last {
			break
		}

		next := start + c.targetSize - c.overlap
		if end > next {
			next = end
		}
		start = next
	}
	return chunks
}

// snapToBoundary scans backward from end for a sentence-ending delimiter and
// returns the cut position just after it, or end unchanged if none is found
// within the lookback window.
func (c *Chunker) snapToBoundary(runes []rune, start, end int) int {
	lo := end - BoundaryLookback
	if lo < start {
		lo = start
	}
	for i := end - 1; i >= lo; i-- {
		r := runes[i]
		switch {
		case (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]):
			return i + 1
		case r == '\n' && i > start && runes[i-1] == '\n':
			return i + 1
		}
	}
	return end
}
