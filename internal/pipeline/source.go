package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ssr/internal"
)

// Fetcher downloads remote inputs.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// Source is one input document held in memory.
type Source struct {
	Name string
	Type internal.InputType
	Blob []byte
}

// Hash is the hex sha256 of the source bytes.
func (s Source) Hash() string {
	sum := sha256.Sum256(s.Blob)
	return hex.EncodeToString(sum[:])
}

func IsRemote(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LoadSource reads a local file or downloads a URL. inputType may be empty,
// in which case it is taken from the file extension.
func LoadSource(ctx context.Context, input string, inputType string, fetcher Fetcher) (Source, error) {
	name := filepath.Base(input)
	var blob []byte
	var err error

	if IsRemote(input) {
		if fetcher == nil {
			return Source{}, fmt.Errorf("no fetcher configured for %s", input)
		}
		if u, perr := url.Parse(input); perr == nil {
			name = path.Base(u.Path)
		}
		blob, err = fetcher.Download(ctx, input)
	} else {
		blob, err = os.ReadFile(input)
	}
	if err != nil {
		return Source{}, fmt.Errorf("load input %s: %w", input, err)
	}

	t := internal.InputType(strings.ToLower(strings.TrimSpace(inputType)))
	if t == "" {
		if t, err = DetectInputType(name); err != nil {
			return Source{}, err
		}
	}
	return Source{Name: name, Type: t, Blob: blob}, nil
}

// ExtractRows turns a loaded source into raw table rows.
func ExtractRows(src Source, opts ExtractOptions) ([]internal.Row, error) {
	rows, err := extractBlob(src.Type, src.Blob, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}
