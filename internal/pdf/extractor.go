package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrParse is returned when the bytes cannot be read as a PDF.
	ErrParse = errors.New("pdf: cannot parse document")
	// ErrNoText is returned when the selected pages yield no text.
	ErrNoText = errors.New("pdf: no extractable text")
)

// ExtractText returns the plain text of pages 1..min(maxPages, page count),
// concatenated in page order. maxPages <= 0 selects every page.
// Pages that fail to decode are skipped. Whitespace-only output is ErrNoText.
func ExtractText(content []byte, maxPages int) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParse, err)
	}

	numPages := r.NumPage()
	if maxPages <= 0 || maxPages > numPages {
		maxPages = numPages
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(pageText)
	}

	text = builder.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}
