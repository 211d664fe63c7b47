package pipeline

import (
	"bytes"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ssr/internal"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, cells := range rows {
		for c, v := range cells {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

var labourSheet = [][]any{
	{nil, nil, "SCHEDULE OF STANDARD RATES 2021-22"},
	{"S.No", "Item No", "Description", "Unit", "Rate"},
	{nil, 1, "RATES OF LABOUR"},
	{nil, nil, "80", "rm", 120},
	{nil, "11.a.", "Providing D.I. specials"},
	{nil, nil, "100 mm", "kg", "As per Common SSR"},
}

func TestParseXLSX(t *testing.T) {
	rows, err := parseXLSX(mkXLSX(labourSheet), "")
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, internal.NumberCell(1), rows[2].At(1))
	assert.Equal(t, internal.TextCell("RATES OF LABOUR"), rows[2].At(2))
	assert.True(t, rows[2].At(0).IsEmpty())
	assert.True(t, rows[2].At(4).IsEmpty())
	assert.Equal(t, internal.TextCell("80"), rows[3].At(2))
	assert.Equal(t, internal.NumberCell(120), rows[3].At(4))
	assert.Equal(t, internal.TextCell("11.a."), rows[4].At(1))
	assert.Equal(t, internal.TextCell("As per Common SSR"), rows[5].At(4))
}

func TestParseXLSXUnknownSheet(t *testing.T) {
	_, err := parseXLSX(mkXLSX(labourSheet), "Missing")
	assert.Error(t, err)
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := parseXLSX([]byte("not a workbook"), "")
	assert.Error(t, err)
}

func TestParseHTMLTable(t *testing.T) {
	html := `<html><body>
<table><tr><td>menu</td></tr></table>
<table>
  <tr><th colspan="2">Item</th><th>Description</th><th>Unit</th><th>Rate</th></tr>
  <tr><td></td><td>1</td><td>RATES OF LABOUR</td><td></td><td></td></tr>
  <tr><td></td><td></td><td>80</td><td>rm</td><td>1,245.50</td></tr>
  <tr><td colspan="2"></td><td>Note&nbsp;: rates include GST</td></tr>
</table></body></html>`

	rows, err := parseHTMLTable(html)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Len(t, rows[0], 5)
	assert.Equal(t, internal.NumberCell(1), rows[1].At(1))
	assert.Equal(t, internal.NumberCell(80), rows[2].At(2))
	assert.Equal(t, internal.NumberCell(1245.5), rows[2].At(4))
	assert.Equal(t, internal.TextCell("Note : rates include GST"), rows[3].At(2))
}

func TestParseHTMLWithoutTable(t *testing.T) {
	_, err := parseHTMLTable("<p>no rates here</p>")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestPDFLineToRow(t *testing.T) {
	cols := Columns{Serial: 0, ItemNo: 1, Description: 2, Unit: 3, Rate: 4}

	tests := []struct {
		line string
		want internal.Row
	}{
		{"1    RATES OF LABOUR", row(nil, 1, "RATES OF LABOUR", nil, nil)},
		{"   80    rm    120", row(nil, nil, "80", "rm", 120)},
		{"a    Upto 1.5 m depth", row(nil, "a", "Upto 1.5 m depth", nil, nil)},
		{"110 mm\trm\tAs per Common SSR", row(nil, nil, "110 mm", "rm", "As per Common SSR")},
		{"                 2,450.00", row(nil, nil, nil, nil, 2450.0)},
		{"NOTE: rates include carriage", row(nil, nil, "NOTE: rates include carriage", nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, pdfLineToRow(tt.line, cols))
		})
	}
}

func TestParseEMLAttachment(t *testing.T) {
	part, err := enmime.Builder().
		From("PHED", "rates@phed.example").
		To("Estimator", "estimates@example.com").
		Subject("SSR 2021-22").
		Text([]byte("Schedule attached.")).
		AddAttachment(mkXLSX(labourSheet), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "SSR_2021-22.xlsx").
		Build()
	require.NoError(t, err)
	var raw bytes.Buffer
	require.NoError(t, part.Encode(&raw))

	rows, err := parseEML(raw.Bytes(), ExtractOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, internal.NumberCell(120), rows[3].At(4))
}

func TestParseEMLHTMLBody(t *testing.T) {
	part, err := enmime.Builder().
		From("PHED", "rates@phed.example").
		To("Estimator", "estimates@example.com").
		Subject("SSR").
		HTML([]byte(`<table><tr><td></td><td>1</td><td>RATES OF LABOUR</td></tr></table>`)).
		Build()
	require.NoError(t, err)
	var raw bytes.Buffer
	require.NoError(t, part.Encode(&raw))

	rows, err := parseEML(raw.Bytes(), ExtractOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, internal.TextCell("RATES OF LABOUR"), rows[0].At(2))
}

func TestDetectInputType(t *testing.T) {
	tests := map[string]internal.InputType{
		"SSR.xlsx": internal.InputXLSX,
		"ssr.XLSM": internal.InputXLSX,
		"ssr.htm":  internal.InputHTML,
		"ssr.html": internal.InputHTML,
		"ssr.pdf":  internal.InputPDF,
		"mail.eml": internal.InputEML,
	}
	for name, want := range tests {
		got, err := DetectInputType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectInputType("ssr.csv")
	assert.ErrorIs(t, err, ErrUnsupportedInput)
}

func TestTextCell(t *testing.T) {
	assert.Equal(t, internal.Cell{}, textCell("   "))
	assert.Equal(t, internal.NumberCell(120), textCell(" 120 "))
	assert.Equal(t, internal.NumberCell(1234567.5), textCell("1,234,567.50"))
	assert.Equal(t, internal.TextCell("11.a."), textCell("11.a."))
	assert.Equal(t, internal.TextCell("1,23"), textCell("1,23"))
	assert.Equal(t, internal.TextCell("100 approx"), textCell("100 approx"))
}

func TestExtractBlobUnsupported(t *testing.T) {
	_, err := extractBlob(internal.InputType("csv"), nil, ExtractOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedInput)
}
