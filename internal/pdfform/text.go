package pdfform

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/m-mizutani/goerr/v2"
)

// Text returns the plain text of the document, truncated to limit runes
// when limit is positive. Pages whose text cannot be decoded are skipped.
func (p *Processor) Text(path string, limit int) (text string, err error) {
	// The text decoder panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("failed to read PDF text", goerr.V("path", path), goerr.V("panic", fmt.Sprint(r)))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open PDF", goerr.V("path", path))
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Debug("skipping page text", "path", path, "page", i, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(t))
	}

	return truncate(strings.TrimSpace(b.String()), limit), nil
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
