package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ssr/internal"
	"ssr/internal/util"
)

// FlattenRates lists every rate of the document: single-rate sections as one
// line, then direct items, then sub-section items.
func FlattenRates(doc *internal.Document) []internal.RateExportRow {
	out := []internal.RateExportRow{}
	for _, s := range doc.Sections {
		base := internal.RateExportRow{
			SectionID: s.ID,
			ItemNo:    s.ItemNo.String(),
			Category:  s.Category,
			Title:     util.Deref(s.Title),
		}
		if s.Rate != nil {
			row := base
			row.Unit = util.Deref(s.Unit)
			row.Rate = s.Rate
			row.RateType = string(s.RateType)
			out = append(out, row)
		}
		for _, item := range s.Items {
			out = append(out, itemRow(base, item))
		}
		for _, sub := range s.SubSections {
			subBase := base
			subBase.SubID = sub.SubID
			subBase.SubSection = util.Deref(sub.Description)
			for _, item := range sub.Items {
				out = append(out, itemRow(subBase, item))
			}
		}
	}
	return out
}

func itemRow(base internal.RateExportRow, item *internal.RateItem) internal.RateExportRow {
	base.ItemID = item.ID
	base.Dimension = util.Deref(item.Dimension)
	base.Unit = util.Deref(item.Unit)
	base.Rate = item.Rate
	base.RateType = string(item.RateType)
	return base
}

func ExportRowsToXLSX(rows []internal.RateExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"section_id", "item_no", "category", "title",
		"sub_id", "sub_section", "item_id", "dimension", "unit", "rate", "rate_type",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.SectionID)
		set(2, row.ItemNo)
		set(3, row.Category)
		set(4, row.Title)
		set(5, row.SubID)
		set(6, row.SubSection)
		set(7, derefID(row.ItemID))
		set(8, row.Dimension)
		set(9, row.Unit)
		set(10, rateValue(row.Rate))
		set(11, row.RateType)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// XLSXSink writes the flattened rate sheet.
type XLSXSink struct {
	Path string
}

func (s XLSXSink) Write(_ context.Context, doc *internal.Document) error {
	return ExportRowsToXLSX(FlattenRates(doc), s.Path)
}

func rateValue(v *internal.Cell) any {
	if v == nil {
		return ""
	}
	if v.IsNumber() {
		return v.Number
	}
	return v.Text
}

func derefID(id int) any {
	if id == 0 {
		return ""
	}
	return id
}
