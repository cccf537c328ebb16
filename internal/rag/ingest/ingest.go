package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag/chunker"
)

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}

// SupportedFile reports whether the file name has an extension we can extract text from.
func SupportedFile(name string) bool {
	return getDocType(name) != commonModels.ERR
}

// ExtractText returns the document text with a page marker in front of every page.
// Any failure to read the file is returned as a *ragErrors.ExtractionError.
func ExtractText(path string) (string, error) {
	var (
		text string
		err  error
	)
	switch getDocType(path) {
	case commonModels.PDF:
		text, err = extractPDF(path)
	case commonModels.DOCX, commonModels.TXT:
		text, err = extractDocument(path)
	default:
		err = fmt.Errorf("unsupported content type: %s", filepath.Ext(path))
	}
	if err != nil {
		return "", &ragErrors.ExtractionError{Path: filepath.Base(path), Err: err}
	}
	return text, nil
}

// PrepareChunks extracts and splits the file. A readable file without text yields ErrEmptyDocument.
func PrepareChunks(path string, chunkSize int, overlap int) ([]commonModels.Chunk, error) {
	text, err := ExtractText(path)
	if err != nil {
		return nil, err
	}
	chunks := chunker.Split(text, chunkSize, overlap)
	if len(chunks) == 0 {
		return nil, ragErrors.ErrEmptyDocument
	}
	return chunks, nil
}
