// Package source loads raw document files into ingest inputs. It extracts
// plain text only; all segmentation happens in the ingest package.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ameetan/go-lexlink/ingest"
	"github.com/ameetan/go-lexlink/store"
)

// ErrUnsupportedFormat is returned for file extensions Load cannot handle.
var ErrUnsupportedFormat = errors.New("source: unsupported format")

// Load reads the file at path and returns it as an ingest input. The format
// is sniffed from the extension: .pdf is extracted page by page, .txt is read
// as-is.
func Load(path string, declaredType store.DocType) (ingest.SourceDocument, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	var (
		text string
		err  error
	)
	switch format {
	case "pdf":
		text, err = pdfText(path)
	case "txt", "text":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return ingest.SourceDocument{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return ingest.SourceDocument{}, err
	}

	return ingest.SourceDocument{
		Path:         path,
		RawText:      text,
		DeclaredType: declaredType,
		Format:       format,
	}, nil
}

// pdfText concatenates the plain text of every page. Pages that fail to
// extract are skipped rather than failing the whole document.
func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no text extracted from %q", path)
	}
	return b.String(), nil
}
