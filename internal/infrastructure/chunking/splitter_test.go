package chunking

import (
	"strings"
	"testing"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

func TestChunkExample(t *testing.T) {
	chunks := NewSplitter(10, 2).Chunk("abcdefghijkl")
	want := []domain.TextChunk{
		{Text: "abcdefghij", Start: 0, End: 10},
		{Text: "ijkl", Start: 8, End: 12},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: expected %+v, got %+v", i, want[i], chunks[i])
		}
	}
}

func TestChunkEmptyText(t *testing.T) {
	chunks := NewDefaultSplitter().Chunk("")
	if chunks == nil || len(chunks) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", chunks)
	}
}

func TestChunkCoverageAndOverlap(t *testing.T) {
	text := strings.Repeat("Regulament local de urbanism. ", 97)
	for _, tc := range []struct{ size, overlap int }{{800, 120}, {50, 0}, {7, 6}, {1, 0}, {3000, 10}} {
		s := NewSplitter(tc.size, tc.overlap)
		chunks := s.Chunk(text)
		length := len([]rune(text))

		if chunks[0].Start != 0 {
			t.Fatalf("size=%d: first chunk must start at 0, got %d", tc.size, chunks[0].Start)
		}
		if chunks[len(chunks)-1].End != length {
			t.Fatalf("size=%d: last chunk must end at %d, got %d", tc.size, length, chunks[len(chunks)-1].End)
		}
		for i, c := range chunks {
			if c.End-c.Start > s.ChunkSize {
				t.Fatalf("size=%d: chunk %d spans %d runes", tc.size, i, c.End-c.Start)
			}
			if string([]rune(text)[c.Start:c.End]) != c.Text {
				t.Fatalf("size=%d: chunk %d text does not match its offsets", tc.size, i)
			}
			if i == 0 {
				continue
			}
			prev := chunks[i-1]
			if c.Start != prev.End-s.Overlap {
				t.Fatalf("size=%d: chunk %d starts at %d, expected %d", tc.size, i, c.Start, prev.End-s.Overlap)
			}
			if c.Start > prev.End {
				t.Fatalf("size=%d: gap between chunk %d and %d", tc.size, i-1, i)
			}
		}
	}
}

func TestNewSplitterClampsOptions(t *testing.T) {
	s := NewSplitter(0, 5)
	if s.ChunkSize != 1 || s.Overlap != 0 {
		t.Fatalf("expected size=1 overlap=0, got %+v", s)
	}

	s = NewSplitter(10, 10)
	if s.Overlap != 9 {
		t.Fatalf("expected overlap clamped to 9, got %d", s.Overlap)
	}

	s = NewSplitter(10, -3)
	if s.Overlap != 0 {
		t.Fatalf("expected negative overlap clamped to 0, got %d", s.Overlap)
	}
}

func TestChunkUsesRuneOffsets(t *testing.T) {
	chunks := NewSplitter(4, 1).Chunk("ăîșțâ")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %+v", chunks)
	}
	if chunks[0].Text != "ăîșț" || chunks[1].Text != "țâ" || chunks[1].Start != 3 || chunks[1].End != 5 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	text := strings.Repeat("POT maxim 40%. ", 200)
	a := NewDefaultSplitter().Chunk(text)
	b := NewDefaultSplitter().Chunk(text)
	if len(a) != len(b) {
		t.Fatalf("chunk count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestChunkClampsUnnormalizedSplitter(t *testing.T) {
	chunks := (&Splitter{ChunkSize: 5, Overlap: 5}).Chunk("abcdefghij")
	// Overlap clamps to 4, so windows advance one rune at a time.
	want := []domain.TextChunk{
		{Text: "abcde", Start: 0, End: 5},
		{Text: "bcdef", Start: 1, End: 6},
		{Text: "cdefg", Start: 2, End: 7},
		{Text: "defgh", Start: 3, End: 8},
		{Text: "efghi", Start: 4, End: 9},
		{Text: "fghij", Start: 5, End: 10},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: expected %+v, got %+v", i, want[i], chunks[i])
		}
	}

	zero := (&Splitter{}).Chunk("abc")
	if len(zero) != 3 || zero[0].Text != "a" || zero[2].End != 3 {
		t.Fatalf("expected single-rune chunks from zero-value splitter, got %+v", zero)
	}
}

func TestChunkWithUsesPerCallWindow(t *testing.T) {
	chunks := ChunkWith("abcdefghijkl", 6, -3)
	if len(chunks) != 2 || chunks[0].End != 6 || chunks[1].Start != 6 || chunks[1].End != 12 {
		t.Fatalf("expected two disjoint windows after clamping overlap to 0, got %+v", chunks)
	}
}
