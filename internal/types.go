package internal

import (
	"encoding/json"
	"math"
	"strconv"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is one raw spreadsheet value: absent, text, or a number.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

func TextCell(s string) Cell    { return Cell{Kind: CellText, Text: s} }
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }
func (c Cell) IsEmpty() bool    { return c.Kind == CellEmpty }
func (c Cell) IsNumber() bool   { return c.Kind == CellNumber }
func (c Cell) IsText() bool     { return c.Kind == CellText }
func (c Cell) IsInteger() bool  { return c.Kind == CellNumber && c.Number == math.Trunc(c.Number) }
func (c Cell) Ptr() *Cell       { return &c }

// String renders the cell the way a spreadsheet would display it; integral
// numbers have no fractional part.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellText:
		return json.Marshal(c.Text)
	case CellNumber:
		if c.IsInteger() && math.Abs(c.Number) < 1e15 {
			return []byte(strconv.FormatInt(int64(c.Number), 10)), nil
		}
		return json.Marshal(c.Number)
	default:
		return []byte("null"), nil
	}
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Cell{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*c = NumberCell(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = TextCell(s)
	return nil
}

// Row is an ordered list of raw cells as read from the source table.
type Row []Cell

// At returns the cell at idx or an empty cell when the row is shorter.
func (r Row) At(idx int) Cell {
	if idx < 0 || idx >= len(r) {
		return Cell{}
	}
	return r[idx]
}

type InputType string

const (
	InputXLSX InputType = "xlsx"
	InputHTML InputType = "html"
	InputPDF  InputType = "pdf"
	InputEML  InputType = "eml"
)

type RateType string

const (
	RateNumeric RateType = "numeric"
	RateFormula RateType = "formula"
)

// RateTypeOf reports numeric for number cells, formula for text and "" when absent.
func RateTypeOf(rate *Cell) RateType {
	switch {
	case rate == nil || rate.IsEmpty():
		return ""
	case rate.IsNumber():
		return RateNumeric
	default:
		return RateFormula
	}
}

type RateItem struct {
	ID            int      `json:"id"`
	SectionItemNo Cell     `json:"section_item_no"`
	Dimension     *string  `json:"dimension,omitempty"`
	Unit          *string  `json:"unit,omitempty"`
	Rate          *Cell    `json:"rate,omitempty"`
	RateType      RateType `json:"rate_type,omitempty"`
}

// SetRate assigns the rate and keeps RateType in step with it.
func (it *RateItem) SetRate(rate *Cell) {
	it.Rate = rate
	it.RateType = RateTypeOf(rate)
}

type SubSection struct {
	SubID       string      `json:"sub_id"`
	Description *string     `json:"description,omitempty"`
	Items       []*RateItem `json:"items"`
}

type Section struct {
	ID          int           `json:"id"`
	ItemNo      Cell          `json:"item_no"`
	ItemKey     string        `json:"item_key"`
	Category    string        `json:"category"`
	Title       *string       `json:"title,omitempty"`
	Unit        *string       `json:"unit,omitempty"`
	Rate        *Cell         `json:"rate,omitempty"`
	RateType    RateType      `json:"rate_type,omitempty"`
	SubSections []*SubSection `json:"sub_sections"`
	Items       []*RateItem   `json:"items"`
}

// AllItems returns direct items followed by sub-section items in document order.
func (s *Section) AllItems() []*RateItem {
	out := make([]*RateItem, 0, len(s.Items))
	out = append(out, s.Items...)
	for _, sub := range s.SubSections {
		out = append(out, sub.Items...)
	}
	return out
}

type Totals struct {
	Sections    int `json:"sections"`
	SubSections int `json:"sub_sections"`
	Items       int `json:"items"`
}

// Document is the fully assembled schedule for one parse run.
type Document struct {
	Title      string     `json:"title"`
	Year       string     `json:"year"`
	SourceFile string     `json:"source_file"`
	SourceHash string     `json:"source_hash,omitempty"`
	Profile    string     `json:"profile,omitempty"`
	ParsedAt   string     `json:"parsed_at"`
	Totals     Totals     `json:"totals"`
	Sections   []*Section `json:"sections"`
}

type ImportRecord struct {
	ID          string `db:"id"`
	RunKey      string `db:"run_key"`
	Title       string `db:"title"`
	Year        string `db:"year"`
	SourceFile  string `db:"source_file"`
	SourceHash  string `db:"source_hash"`
	Profile     string `db:"profile"`
	ParsedAt    string `db:"parsed_at"`
	Sections    int    `db:"total_sections"`
	SubSections int    `db:"total_sub_sections"`
	Items       int    `db:"total_items"`
}

// SectionHit is one row returned by a section search.
type SectionHit struct {
	ImportID string   `db:"import_id"`
	Year     string   `db:"year"`
	ItemNo   string   `db:"item_no"`
	ItemKey  string   `db:"item_key"`
	Category string   `db:"category"`
	Title    *string  `db:"title"`
	Unit     *string  `db:"unit"`
	RateNum  *float64 `db:"rate_num"`
	RateText *string  `db:"rate_text"`
	Items    int      `db:"item_count"`
}

// RateExportRow is one flattened line of the rate sheet export.
type RateExportRow struct {
	SectionID  int
	ItemNo     string
	Category   string
	Title      string
	SubID      string
	SubSection string
	ItemID     int
	Dimension  string
	Unit       string
	Rate       *Cell
	RateType   string
}
