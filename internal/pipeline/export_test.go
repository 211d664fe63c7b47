package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ssr/internal"
)

func exportDocument(t *testing.T) *internal.Document {
	t.Helper()
	sections := build(t,
		row(nil, 5, "Excavation in trench", "cum", 150),
		row(nil, 12, "Laying pipes", nil, nil),
		row(nil, nil, "15", "rm", 40),
		row(nil, "a", "Upto 1.5 m depth", nil, nil),
		row(nil, nil, "20mm", "rm", "As per Common SSR"),
	)
	return AssembleDocument(sections, DocumentMeta{Title: "SSR", ParsedAt: time.Unix(0, 0)})
}

func TestFlattenRates(t *testing.T) {
	rows := FlattenRates(exportDocument(t))
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].SectionID)
	assert.Equal(t, "5", rows[0].ItemNo)
	assert.Equal(t, 0, rows[0].ItemID)
	assert.Equal(t, "cum", rows[0].Unit)
	assert.Equal(t, 150.0, rows[0].Rate.Number)

	assert.Equal(t, 2, rows[1].SectionID)
	assert.Equal(t, 1, rows[1].ItemID)
	assert.Equal(t, "", rows[1].SubID)

	assert.Equal(t, "a", rows[2].SubID)
	assert.Equal(t, "Upto 1.5 m depth", rows[2].SubSection)
	assert.Equal(t, "20", rows[2].Dimension)
	assert.Equal(t, "formula", rows[2].RateType)
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rates.xlsx")
	require.NoError(t, XLSXSink{Path: path}.Write(context.Background(), exportDocument(t)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "section_id", rows[0][0])
	assert.Equal(t, "rate_type", rows[0][10])
	assert.Equal(t, "150", rows[1][9])
	assert.Equal(t, "As per Common SSR", rows[3][9])
}
