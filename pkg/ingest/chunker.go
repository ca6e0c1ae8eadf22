package ingest

import (
	"strings"
	"unicode"
)

// Chunk is a piece of a document small enough to embed.
type Chunk struct {
	Source  string
	Index   int
	Content string
}

type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split cuts text into chunks of at most Size runes, each starting Overlap
// runes before the previous one ended. Cuts are moved back to the last
// whitespace in the second half of a chunk so words stay whole.
func (c *Chunker) Split(source, text string) []Chunk {
	runes := []rune(strings.TrimSpace(text))
	ret := []Chunk{}
	if len(runes) == 0 {
		return ret
	}

	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			for i := end; i > start+c.Size/2; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			ret = append(ret, Chunk{Source: source, Index: len(ret), Content: content})
		}
		if end == len(runes) {
			break
		}

		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return ret
}
