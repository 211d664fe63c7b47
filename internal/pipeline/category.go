package pipeline

import (
	"strings"

	"ssr/internal"
	"ssr/internal/util"
)

// CategoryResolver maps item keys to category labels.
type CategoryResolver struct {
	byKey    map[string]string
	fallback string
}

func NewCategoryResolver(table map[string]string, fallback string) *CategoryResolver {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultCategory
	}
	byKey := make(map[string]string, len(table))
	for k, v := range table {
		byKey[k] = v
		if canon := util.CanonicalKey(k); canon != "" {
			if _, exists := byKey[canon]; !exists {
				byKey[canon] = v
			}
		}
	}
	return &CategoryResolver{byKey: byKey, fallback: fallback}
}

// Resolve tries the canonical key, then the raw item number as text, then
// falls back to the default label. The result is never empty.
func (r *CategoryResolver) Resolve(itemKey string, itemNo internal.Cell) string {
	if itemKey != "" {
		if name, ok := r.byKey[itemKey]; ok {
			return name
		}
	}
	if raw := itemNo.String(); raw != "" {
		if name, ok := r.byKey[raw]; ok {
			return name
		}
	}
	return r.fallback
}

func (r *CategoryResolver) Len() int {
	return len(r.byKey)
}
