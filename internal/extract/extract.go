// Package extract turns uploaded file bytes into plain text for chunking.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for file types docrag cannot extract text from.
var ErrUnsupported = errors.New("extract: unsupported file type")

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// ForName extracts text from raw according to the file extension of name.
// PDFs go through PDF; .txt and .md files are decoded as UTF-8.
func ForName(name string, raw []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF(raw)
	case ".txt", ".md":
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("extract: %s is not valid UTF-8", name)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
}

// PDF returns the plain text of every page of the PDF in raw, joined by a
// blank line. A page whose text cannot be extracted contributes an empty
// string instead of failing the whole document. An error is returned only
// when the file itself cannot be opened.
func PDF(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		if strings.Contains(err.Error(), "encrypted") || strings.Contains(err.Error(), "password") {
			return "", errors.New("extract: encrypted PDF not supported")
		}
		return "", fmt.Errorf("extract: open pdf: %w", err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, pageText(r, i))
	}
	return strings.Join(pages, pageSeparator), nil
}

// pageText extracts one page. The pdf package panics on some malformed
// content streams, so a panic is treated like any other page failure.
func pageText(r *pdf.Reader, i int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	p := r.Page(i)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
