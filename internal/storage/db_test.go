package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssr/internal"
	"ssr/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "ssr.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleDocument(rate float64) *internal.Document {
	labour := &internal.Section{
		ID:       1,
		ItemNo:   internal.NumberCell(1),
		ItemKey:  "1",
		Category: "Labour Rates",
		Title:    util.StringPtr("RATES OF LABOUR"),
		Items: []*internal.RateItem{{
			ID:            1,
			SectionItemNo: internal.NumberCell(1),
			Dimension:     util.StringPtr("80"),
			Unit:          util.StringPtr("rm"),
			Rate:          internal.NumberCell(rate).Ptr(),
			RateType:      internal.RateNumeric,
		}},
		SubSections: []*internal.SubSection{},
	}
	pipes := &internal.Section{
		ID:       2,
		ItemNo:   internal.TextCell("11.a."),
		ItemKey:  "11a",
		Category: "Cast Iron Pipes",
		Title:    util.StringPtr("Providing C.I. pipes"),
		Items:    []*internal.RateItem{},
		SubSections: []*internal.SubSection{{
			SubID:       "auto_1",
			Description: util.StringPtr("PVC PIPES"),
			Items: []*internal.RateItem{{
				ID:            2,
				SectionItemNo: internal.TextCell("11.a."),
				Dimension:     util.StringPtr("110"),
				Unit:          util.StringPtr("rm"),
				Rate:          internal.TextCell("As per Common SSR").Ptr(),
				RateType:      internal.RateFormula,
			}},
		}},
	}
	return &internal.Document{
		Title:      "Schedule of Rates 2021-22",
		Year:       "2021-22",
		SourceFile: "SSR_2021-22.xlsx",
		SourceHash: "abc",
		Profile:    "public-health",
		ParsedAt:   "2026-10-19T00:00:00Z",
		Totals:     internal.Totals{Sections: 2, SubSections: 1, Items: 2},
		Sections:   []*internal.Section{labour, pipes},
	}
}

func TestRunKey(t *testing.T) {
	assert.Equal(t, "ssr_2021-22.xlsx|2021-22", RunKey("/data/SSR_2021-22.xlsx", "2021-22"))
	assert.Equal(t, "a.xlsx|", RunKey("A.xlsx", ""))
}

func TestSaveDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	doc := sampleDocument(120)
	id, err := db.SaveDocument(ctx, doc)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := db.ImportByRunKey(ctx, RunKey(doc.SourceFile, doc.Year))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, 2, rec.Sections)
	assert.Equal(t, 2, rec.Items)

	loaded, err := db.LoadDocument(ctx, rec.RunKey)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, doc.Title, loaded.Title)
	require.Len(t, loaded.Sections, 2)
	assert.Equal(t, internal.TextCell("11.a."), loaded.Sections[1].ItemNo)
	assert.Equal(t, 120.0, loaded.Sections[0].Items[0].Rate.Number)
}

func TestSaveDocumentReplacesSameEdition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.SaveDocument(ctx, sampleDocument(120))
	require.NoError(t, err)
	second, err := db.SaveDocument(ctx, sampleDocument(245.5))
	require.NoError(t, err)

	imports, err := db.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, second, imports[0].ID)

	var sections, items, indexed int
	require.NoError(t, db.conn.Get(&sections, `SELECT COUNT(*) FROM sections`))
	require.NoError(t, db.conn.Get(&items, `SELECT COUNT(*) FROM rate_items`))
	require.NoError(t, db.conn.Get(&indexed, `SELECT COUNT(*) FROM section_search`))
	assert.Equal(t, 2, sections)
	assert.Equal(t, 2, items)
	assert.Equal(t, 2, indexed)

	var rate float64
	require.NoError(t, db.conn.Get(&rate, `SELECT rate_num FROM rate_items WHERE item_id = 1`))
	assert.Equal(t, 245.5, rate)
}

func TestSaveDocumentKeepsOtherEditions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first := sampleDocument(120)
	second := sampleDocument(130)
	second.Year = "2022-23"

	require.NoError(t, db.Write(ctx, first))
	require.NoError(t, db.Write(ctx, second))

	imports, err := db.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, "2022-23", imports[0].Year)
}

func TestSearchSections(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Write(ctx, sampleDocument(120)))

	hits, err := db.SearchSections(ctx, "pvc pipes", "", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "11a", hits[0].ItemKey)
	assert.Equal(t, 1, hits[0].Items)
	assert.Nil(t, hits[0].RateNum)

	hits, err = db.SearchSections(ctx, "", "Labour Rates", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].ItemKey)

	hits, err = db.SearchSections(ctx, `labour"`, "Cast Iron Pipes", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestImportByRunKeyMissing(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.ImportByRunKey(context.Background(), "none|")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestOpenStripsSQLiteScheme(t *testing.T) {
	db, err := Open(DriverSQLite, "sqlite://"+filepath.Join(t.TempDir(), "ssr.db"), 0)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x", 0)
	assert.Error(t, err)
}
