package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
)

var pageMarker = regexp.MustCompile(`---\s*Page\s+(\d+)\s*---`)

// PageMarker is the separator extraction writes in front of every page's text.
func PageMarker(page int) string {
	return fmt.Sprintf("\n\n--- Page %d ---\n\n", page)
}

// parsePage reports whether line is a page marker and the page it names.
// Lines that look like markers but carry no parsable number are treated as text.
func parsePage(line string) (int, bool) {
	m := pageMarker.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

type buffer struct {
	text strings.Builder
	n    int //runes
	page int
}

func (b *buffer) reset(seed string, page int) {
	b.text.Reset()
	b.text.WriteString(seed)
	b.n = utf8.RuneCountInString(seed)
	b.page = page
}

func (b *buffer) add(line string) {
	if b.n > 0 {
		b.text.WriteByte('\n')
		b.n++
	}
	b.text.WriteString(line)
	b.n += utf8.RuneCountInString(line)
}

func (b *buffer) blank() bool {
	return strings.TrimSpace(b.text.String()) == ""
}

// tail returns the last k runes of the buffer, or "" when the buffer is not longer than k.
func (b *buffer) tail(k int) string {
	if k <= 0 || b.n <= k {
		return ""
	}
	r := []rune(b.text.String())
	return string(r[len(r)-k:])
}

// Split cuts text into line aligned chunks of roughly maxChars runes.
// A line is never split, so a single long line produces an oversized chunk.
// Each new chunk is seeded with the last overlap runes of the previous one.
// A chunk carries the page that was current when its first line entered the
// buffer; text before any page marker belongs to page 1.
func Split(text string, maxChars, overlap int) []commonModels.Chunk {
	var chunks []commonModels.Chunk
	if strings.TrimSpace(text) == "" || maxChars <= 0 {
		return chunks
	}

	page := 1
	index := 0
	buf := &buffer{page: page}

	emit := func() {
		content := strings.TrimSpace(buf.text.String())
		if content == "" {
			return
		}
		chunks = append(chunks, commonModels.Chunk{Content: content, Page: buf.page, Index: index})
		index++
	}

	for _, line := range strings.Split(text, "\n") {
		if p, ok := parsePage(line); ok {
			page = p
			continue
		}

		if buf.n+utf8.RuneCountInString(line) < maxChars {
			if buf.blank() {
				buf.page = page
			}
			buf.add(line)
			continue
		}

		emit()
		seed := buf.tail(overlap)
		buf.reset(seed, page)
		buf.add(line)
	}
	emit()

	return chunks
}
