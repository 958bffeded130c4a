package preprocess

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the maximum runes per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the maximum runes carried from one chunk into
	// the next.
	DefaultChunkOverlap = 200
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`[.!?]["')\]]*\s+`)
)

// Chunker packs paragraphs into chunks of at most Size runes. Each chunk
// after the first begins with up to Overlap runes from the end of the
// previous one.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker validates size and overlap.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be between 0 and the chunk size")
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// piece is a unit that fits in a chunk and the separator placed before it
// when it follows another piece.
type piece struct {
	text string
	sep  string
}

// Split returns the chunks of text. Blank text yields no chunks.
func (c *Chunker) Split(text string) []string {
	var (
		chunks []string
		cur    string
	)
	for _, p := range c.pieces(text) {
		if cur == "" {
			cur = p.text
			continue
		}
		if runeLen(cur)+runeLen(p.sep)+runeLen(p.text) <= c.Size {
			cur += p.sep + p.text
			continue
		}

		chunks = append(chunks, cur)
		if carry := c.carry(cur, runeLen(p.text)); carry != "" {
			cur = carry + " " + p.text
		} else {
			cur = p.text
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// pieces splits text into paragraphs, then sentences, then hard runs of
// Size runes, until every piece fits.
func (c *Chunker) pieces(text string) []piece {
	var out []piece
	for _, para := range paragraphBreak.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= c.Size {
			out = append(out, piece{text: para, sep: "\n\n"})
			continue
		}

		sep := "\n\n"
		for _, sentence := range splitSentences(para) {
			for _, part := range hardSplit(sentence, c.Size) {
				if part == "" {
					continue
				}
				out = append(out, piece{text: part, sep: sep})
				sep = " "
			}
		}
	}
	return out
}

// carry returns the tail of prev to repeat at the start of the next chunk,
// leaving room for a following piece of next runes plus a joining space.
// The tail starts on a word boundary when one exists.
func (c *Chunker) carry(prev string, next int) string {
	n := min(c.Overlap, c.Size-next-1)
	if n <= 0 {
		return ""
	}

	runes := []rune(prev)
	if n >= len(runes) {
		return strings.TrimSpace(prev)
	}
	tail := runes[len(runes)-n:]
	if !unicode.IsSpace(runes[len(runes)-n-1]) {
		for i, r := range tail {
			if unicode.IsSpace(r) {
				tail = tail[i:]
				break
			}
		}
	}
	return strings.TrimSpace(string(tail))
}

func splitSentences(para string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(para, -1) {
		if s := strings.TrimSpace(para[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(para[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

func hardSplit(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		out = append(out, strings.TrimSpace(string(runes[:n])))
		runes = runes[n:]
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
