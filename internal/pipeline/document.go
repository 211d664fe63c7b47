package pipeline

import (
	"path/filepath"
	"regexp"
	"time"

	"ssr/internal"
	"ssr/internal/util"
)

var yearPattern = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(?:\s*[-–/]\s*(\d{2,4}))?(?:[^0-9]|$)`)

type DocumentMeta struct {
	Title      string
	Year       string
	SourceFile string
	SourceHash string
	Profile    string
	ParsedAt   time.Time
}

// AssembleDocument numbers sections and items in output order and fills totals.
// Item ids run across the whole document.
func AssembleDocument(sections []*internal.Section, meta DocumentMeta) *internal.Document {
	doc := &internal.Document{
		Title:      meta.Title,
		Year:       meta.Year,
		SourceFile: meta.SourceFile,
		SourceHash: meta.SourceHash,
		Profile:    meta.Profile,
		ParsedAt:   meta.ParsedAt.UTC().Format(time.RFC3339),
		Sections:   sections,
	}
	if doc.Sections == nil {
		doc.Sections = []*internal.Section{}
	}

	itemID := 0
	for i, s := range doc.Sections {
		s.ID = i + 1
		doc.Totals.SubSections += len(s.SubSections)
		for _, item := range s.AllItems() {
			itemID++
			item.ID = itemID
			item.SectionItemNo = s.ItemNo
		}
	}
	doc.Totals.Sections = len(doc.Sections)
	doc.Totals.Items = itemID
	return doc
}

// DiscoverTitle returns the first non-empty text cell among the header rows.
func DiscoverTitle(rows []internal.Row, headerRows int) string {
	for i := 0; i < headerRows && i < len(rows); i++ {
		for _, c := range rows[i] {
			if !c.IsText() {
				continue
			}
			if s := util.NormalizeSpaces(c.Text); s != "" {
				return s
			}
		}
	}
	return ""
}

// DiscoverYear finds a schedule year such as "2023" or "2023-24" in the
// candidates, checked in order.
func DiscoverYear(candidates ...string) string {
	for _, c := range candidates {
		m := yearPattern.FindStringSubmatch(filepath.Base(c))
		if m == nil {
			m = yearPattern.FindStringSubmatch(c)
		}
		if m == nil {
			continue
		}
		if m[2] != "" {
			return m[1] + "-" + m[2]
		}
		return m[1]
	}
	return ""
}
