package ingest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/PdfQA/internal/rag/chunker"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const (
	pageExtractTimeout = 10 * time.Second

	//horizontal gap, as a share of the font size, read as a space between glyphs
	wordGapRatio = 0.15
)

// extractPDF returns the text of every readable page, each preceded by its page marker.
// Pages that fail or time out are skipped; a file that cannot be opened is an error.
func extractPDF(path string) (text string, err error) {
	logger.Debug("extractPDF", "attempting extraction", path)

	//the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file", "error", err)
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			logger.Debug("extractPDF", "null page", i)
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// Log warning but continue with other pages
			logger.Warn("Error parsing page content", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		sb.WriteString(chunker.PageMarker(i))
		sb.WriteString(content)
	}
	return sb.String(), nil
}

// extractDocument reads a .odt, .docx, .rtf or plaintext file. These formats carry no
// page information so everything is attributed to page 1.
func extractDocument(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("Error extracting content from doc", "error", err)
		return "", fmt.Errorf("failed to extract document: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return chunker.PageMarker(1) + text, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{"", fmt.Errorf("page extraction panic: %v", r)}
			}
		}()
		resChan <- result{pageLines(page.Content().Text), nil}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		logger.Error("pageExtract", "timeout", pageExtractTimeout)
		return "", errors.New("timeout")
	}
}

// pageLines rebuilds the visual lines of a page from its positioned glyphs. Glyphs on the
// same baseline form one line and lines run top to bottom, so the chunker sees one line
// per printed row whichever operators the producer used to move between them.
func pageLines(glyphs []pdf.Text) string {
	type line struct {
		y    float64
		text strings.Builder
		last *pdf.Text
	}

	var lines []*line
	byBaseline := make(map[int64]*line)
	for i := range glyphs {
		g := &glyphs[i]
		key := int64(math.Round(g.Y))
		l, ok := byBaseline[key]
		if !ok {
			l = &line{y: g.Y}
			byBaseline[key] = l
			lines = append(lines, l)
		}
		if l.last != nil && wordGap(*l.last, *g) {
			l.text.WriteByte(' ')
		}
		l.text.WriteString(g.S)
		l.last = g
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if text := strings.TrimSpace(l.text.String()); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n")
}

// wordGap reports whether next starts far enough right of prev to be a new word.
// Fonts without a widths table give zero widths, those rely on literal spaces.
func wordGap(prev pdf.Text, next pdf.Text) bool {
	if prev.W <= 0 || prev.S == " " || next.S == " " {
		return false
	}
	return next.X-(prev.X+prev.W) > prev.FontSize*wordGapRatio
}
