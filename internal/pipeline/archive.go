package pipeline

import (
	"os"
	"path/filepath"
	"strings"
)

// ArchiveSource stores the raw input under dir as <sha256><ext>. Existing
// copies are left alone.
func ArchiveSource(dir string, src Source) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	rawPath := filepath.Join(dir, src.Hash()+strings.ToLower(filepath.Ext(src.Name)))
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, src.Blob, 0o644); err != nil {
			return "", err
		}
	}
	return rawPath, nil
}
