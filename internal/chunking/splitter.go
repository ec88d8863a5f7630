// Package chunking splits ticket text into overlapping, size-bounded chunks
// ready for embedding.
package chunking

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 512
	DefaultOverlap   = 50
)

// DefaultSeparators are tried in order of decreasing semantic weight. The
// empty separator splits on runes and always succeeds.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " ", ""}

// Piece is one chunk of text. The first Overlap runes of Text repeat the end
// of the previous piece; the remainder is new text.
type Piece struct {
	Text    string
	Overlap int
}

// Body returns the piece without its overlap prefix.
func (p Piece) Body() string {
	if p.Overlap == 0 {
		return p.Text
	}
	runes := []rune(p.Text)
	if p.Overlap >= len(runes) {
		return ""
	}
	return string(runes[p.Overlap:])
}

// Splitter is a recursive boundary splitter. Sizes are counted in runes.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter using DefaultSeparators. Non-positive sizes
// fall back to the defaults and the overlap is kept below the chunk size.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Separators: DefaultSeparators,
	}
}

// Split breaks text into pieces of at most ChunkSize runes (plus overlap).
// Empty or whitespace-only text yields nil. Text that already fits is
// returned as a single piece unchanged.
func (s *Splitter) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []Piece{{Text: text}}
	}

	raw := s.split(text, s.Separators)
	pieces := make([]Piece, 0, len(raw))
	for i, r := range raw {
		if i == 0 || s.Overlap == 0 {
			pieces = append(pieces, Piece{Text: r})
			continue
		}
		prefix := overlapPrefix(raw[i-1], s.Overlap)
		pieces = append(pieces, Piece{
			Text:    prefix + r,
			Overlap: utf8.RuneCountInString(prefix),
		})
	}
	return pieces
}

// SplitText is Split without the overlap bookkeeping.
func (s *Splitter) SplitText(text string) []string {
	pieces := s.Split(text)
	if pieces == nil {
		return nil
	}
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Text
	}
	return out
}

// split returns raw pieces whose concatenation is exactly text.
func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}
	if sep == "" {
		return splitRunes(text, s.ChunkSize)
	}

	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, part := range splitKeep(text, sep) {
		n := utf8.RuneCountInString(part)
		switch {
		case n > s.ChunkSize:
			flush()
			out = append(out, s.split(part, rest)...)
		case curLen+n > s.ChunkSize:
			flush()
			cur.WriteString(part)
			curLen = n
		default:
			cur.WriteString(part)
			curLen += n
		}
	}
	flush()

	return out
}

// splitKeep splits text after every occurrence of sep, keeping sep attached
// to the end of the preceding part.
func splitKeep(text, sep string) []string {
	var parts []string
	for {
		idx := strings.Index(text, sep)
		if idx < 0 {
			break
		}
		cut := idx + len(sep)
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// overlapPrefix takes the tail of prev, at most overlap runes including the
// trailing space it adds, starting on a word boundary.
func overlapPrefix(prev string, overlap int) string {
	runes := []rune(prev)
	var tail string
	if len(runes) < overlap {
		tail = prev
	} else {
		tail = string(runes[len(runes)-overlap:])
		idx := strings.IndexByte(tail, ' ')
		if idx < 0 {
			return ""
		}
		tail = tail[idx+1:]
	}

	tail = strings.TrimSpace(tail)
	if tail == "" {
		return ""
	}
	return tail + " "
}
