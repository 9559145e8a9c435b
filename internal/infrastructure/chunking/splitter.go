package chunking

import "github.com/kirillkom/urbanism-zoning/internal/core/domain"

const (
	DefaultChunkSize = 800
	DefaultOverlap   = 120
)

// Splitter cuts text into fixed-size rune windows. Offsets are rune offsets.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	chunkSize, overlap = clampWindow(chunkSize, overlap)
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func NewDefaultSplitter() *Splitter {
	return NewSplitter(DefaultChunkSize, DefaultOverlap)
}

// clampWindow keeps chunkSize >= 1 and overlap within [0, chunkSize-1].
func clampWindow(chunkSize, overlap int) (int, int) {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > chunkSize-1 {
		overlap = chunkSize - 1
	}
	return chunkSize, overlap
}

func (s *Splitter) Chunk(text string) []domain.TextChunk {
	return ChunkWith(text, s.ChunkSize, s.Overlap)
}

// ChunkWith walks the text with windows [start, start+chunkSize). Each next
// window starts overlap runes before the previous end. The last chunk ends at
// len(text). Out-of-range sizes are clamped rather than rejected.
func ChunkWith(text string, chunkSize, overlap int) []domain.TextChunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return []domain.TextChunk{}
	}
	chunkSize, overlap = clampWindow(chunkSize, overlap)

	step := chunkSize - overlap
	out := make([]domain.TextChunk, 0, len(runes)/step+1)
	start := 0
	for {
		end := min(len(runes), start+chunkSize)
		out = append(out, domain.TextChunk{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}
