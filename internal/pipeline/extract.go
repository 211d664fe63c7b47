package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"ssr/internal"
	"ssr/internal/util"
)

var (
	pdfColumnGap   = regexp.MustCompile(`\t+|\s{2,}`)
	pdfItemNo      = regexp.MustCompile(`^(?:\d+\.?\s*[A-Za-z]?\.?|[A-Za-z][.)]?)$`)
	pdfRate        = regexp.MustCompile(`(?i)^(?:\d[\d,]*(?:\.\d+)?|as per\b.*)$`)
	pdfUnit        = regexp.MustCompile(`^[A-Za-z][A-Za-z.\s/]{0,9}\d?$`)
	thousandsGroup = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
)

// ExtractOptions selects the sheet of a workbook and the column layout text
// sources should emit.
type ExtractOptions struct {
	Sheet   string
	Columns Columns
}

func parseXLSX(content []byte, sheet string) ([]internal.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if strings.TrimSpace(sheet) == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoRows
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	out := make([]internal.Row, 0, len(raw))
	for r, cells := range raw {
		row := make(internal.Row, len(cells))
		for c, value := range cells {
			if value == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				row[c] = internal.TextCell(value)
				continue
			}
			cellType, err := f.GetCellType(sheet, name)
			if err != nil {
				cellType = excelize.CellTypeUnset
			}
			row[c] = xlsxCell(value, cellType)
		}
		out = append(out, row)
	}
	return out, nil
}

func xlsxCell(value string, cellType excelize.CellType) internal.Cell {
	if cellType == excelize.CellTypeUnset || cellType == excelize.CellTypeNumber {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return internal.NumberCell(f)
		}
	}
	return internal.TextCell(value)
}

// parseHTMLTable reads the largest table of the page, expanding colspans so
// cells stay aligned with their columns.
func parseHTMLTable(html string) ([]internal.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var best *goquery.Selection
	bestRows := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if n := table.Find("tr").Length(); n > bestRows {
			best, bestRows = table, n
		}
	})
	if best == nil {
		return nil, ErrNoRows
	}

	out := make([]internal.Row, 0, bestRows)
	best.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := internal.Row{}
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, textCell(cell.Text()))
			if span, err := strconv.Atoi(cell.AttrOr("colspan", "1")); err == nil {
				for i := 1; i < span; i++ {
					row = append(row, internal.Cell{})
				}
			}
		})
		out = append(out, row)
	})
	return out, nil
}

func parsePDF(content []byte, cols Columns) ([]internal.Row, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	out := []internal.Row{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			out = append(out, pdfLineToRow(line, cols))
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// pdfLineToRow splits a text line on wide gaps. Rate and unit are taken from
// the end first, so a leading dimension such as "80" is not mistaken for an
// item number.
func pdfLineToRow(line string, cols Columns) internal.Row {
	fields := pdfColumnGap.Split(strings.TrimSpace(line), -1)
	width := max(cols.Serial, cols.ItemNo, cols.Description, cols.Unit, cols.Rate) + 1
	row := make(internal.Row, width)

	if len(fields) >= 1 && pdfRate.MatchString(fields[len(fields)-1]) {
		row[cols.Rate] = textCell(fields[len(fields)-1])
		fields = fields[:len(fields)-1]
		if len(fields) >= 1 && pdfUnit.MatchString(fields[len(fields)-1]) {
			row[cols.Unit] = textCell(fields[len(fields)-1])
			fields = fields[:len(fields)-1]
		}
	}
	if len(fields) >= 2 && pdfItemNo.MatchString(fields[0]) {
		row[cols.ItemNo] = textCell(fields[0])
		fields = fields[1:]
	}
	if desc := strings.Join(fields, " "); strings.TrimSpace(desc) != "" {
		row[cols.Description] = internal.TextCell(desc)
	}
	return row
}

// parseEML reads a mailed schedule: the first workbook, page or pdf
// attachment wins, then the HTML body.
func parseEML(raw []byte, opts ExtractOptions) ([]internal.Row, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read email: %w", err)
	}

	for _, att := range env.Attachments {
		inputType, err := DetectInputType(att.FileName)
		if err != nil || inputType == internal.InputEML {
			continue
		}
		rows, err := extractBlob(inputType, att.Content, opts)
		if err == nil && len(rows) > 0 {
			return rows, nil
		}
	}
	if strings.TrimSpace(env.HTML) != "" {
		return parseHTMLTable(env.HTML)
	}
	return nil, ErrNoRows
}

func extractBlob(inputType internal.InputType, blob []byte, opts ExtractOptions) ([]internal.Row, error) {
	switch inputType {
	case internal.InputXLSX:
		return parseXLSX(blob, opts.Sheet)
	case internal.InputHTML:
		return parseHTMLTable(string(blob))
	case internal.InputPDF:
		return parsePDF(blob, opts.Columns)
	case internal.InputEML:
		return parseEML(blob, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, inputType)
	}
}

// DetectInputType maps a file name to its input type by extension.
func DetectInputType(name string) (internal.InputType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return internal.InputXLSX, nil
	case ".html", ".htm":
		return internal.InputHTML, nil
	case ".pdf":
		return internal.InputPDF, nil
	case ".eml":
		return internal.InputEML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedInput, name)
	}
}

// textCell types a cell read from an untyped source: plain and
// thousands-grouped numbers become numbers, blanks become empty.
func textCell(s string) internal.Cell {
	trimmed := util.NormalizeSpaces(s)
	if trimmed == "" {
		return internal.Cell{}
	}
	if thousandsGroup.MatchString(trimmed) {
		trimmed = strings.ReplaceAll(trimmed, ",", "")
	}
	if util.IsPlainNumber(trimmed) {
		f, _ := strconv.ParseFloat(trimmed, 64)
		return internal.NumberCell(f)
	}
	return internal.TextCell(trimmed)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
