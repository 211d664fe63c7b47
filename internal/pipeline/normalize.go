package pipeline

import (
	"strings"

	"ssr/internal"
	"ssr/internal/util"
)

// NormalizedRow holds the cleaned fields of one table row. Absent fields are
// nil (or an empty Cell for ItemNo).
type NormalizedRow struct {
	Index          int
	ItemNo         internal.Cell
	ItemKey        string
	Description    *string
	RawDescription string
	Unit           *string
	Rate           *internal.Cell
}

func (r NormalizedRow) HasItemNo() bool {
	return !r.ItemNo.IsEmpty()
}

func (r NormalizedRow) IsBlank() bool {
	return r.ItemNo.IsEmpty() && r.Description == nil && r.Unit == nil && r.Rate == nil
}

// CleanText trims and collapses whitespace; empty results are absent.
func CleanText(c internal.Cell) *string {
	if c.IsEmpty() {
		return nil
	}
	s := util.NormalizeSpaces(c.String())
	if s == "" {
		return nil
	}
	return &s
}

// ParseRate keeps numbers as numbers, parses text through its leading numeric
// prefix and otherwise keeps the trimmed text verbatim ("As per Common SSR").
func ParseRate(c internal.Cell) *internal.Cell {
	switch c.Kind {
	case internal.CellNumber:
		return c.Ptr()
	case internal.CellText:
		s := strings.TrimSpace(c.Text)
		if s == "" {
			return nil
		}
		if f, ok := util.ParseLeadingFloat(s); ok {
			return internal.NumberCell(f).Ptr()
		}
		return internal.TextCell(s).Ptr()
	default:
		return nil
	}
}

// CanonicalKey is the lookup form of an item number; "" when absent.
func CanonicalKey(itemNo internal.Cell) string {
	if itemNo.IsEmpty() {
		return ""
	}
	return util.CanonicalKey(itemNo.String())
}

func cleanItemNo(c internal.Cell) internal.Cell {
	if c.IsText() {
		s := util.NormalizeSpaces(c.Text)
		if s == "" {
			return internal.Cell{}
		}
		return internal.TextCell(s)
	}
	return c
}

func (r *Rules) Normalize(index int, row internal.Row) NormalizedRow {
	itemNo := cleanItemNo(row.At(r.Columns.ItemNo))
	desc := row.At(r.Columns.Description)
	raw := ""
	if desc.IsText() {
		raw = desc.Text
	}
	return NormalizedRow{
		Index:          index,
		ItemNo:         itemNo,
		ItemKey:        CanonicalKey(itemNo),
		Description:    CleanText(desc),
		RawDescription: raw,
		Unit:           CleanText(row.At(r.Columns.Unit)),
		Rate:           ParseRate(row.At(r.Columns.Rate)),
	}
}
