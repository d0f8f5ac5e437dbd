package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ameetan/go-lexlink/store"
)

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Misrepresentation Act.TXT")
	const content = "MISREPRESENTATION ACT\n\n[1 February 1968]\n\n1.  Removal of bars\nBody text.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Load(path, store.DocStatute)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.RawText != content {
		t.Errorf("raw text: got %q", src.RawText)
	}
	if src.Format != "txt" {
		t.Errorf("format: got %q, want txt", src.Format)
	}
	if src.DeclaredType != store.DocStatute {
		t.Errorf("declared type: got %q", src.DeclaredType)
	}
	if src.Path != path {
		t.Errorf("path: got %q", src.Path)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load("contract.docx", store.DocCase)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
	if err != nil && !strings.Contains(err.Error(), "docx") {
		t.Errorf("error should name the format: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt"), store.DocRule); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestLoadBadPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, store.DocCase); err == nil {
		t.Fatal("want error for unparseable PDF")
	}
}
