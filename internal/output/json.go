package output

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"ssr/internal"
)

// Encode writes doc as indented JSON followed by a newline.
func Encode(w io.Writer, doc *internal.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// JSONSink writes the document to a file, or to Stdout when Path is "-".
type JSONSink struct {
	Path   string
	Stdout io.Writer
}

func (s JSONSink) Write(_ context.Context, doc *internal.Document) error {
	if s.Path == "-" || s.Path == "" {
		w := s.Stdout
		if w == nil {
			w = os.Stdout
		}
		return Encode(w, doc)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := Encode(f, doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path)
}
