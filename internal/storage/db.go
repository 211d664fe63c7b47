package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"ssr/internal"
	"ssr/internal/util"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type DB struct {
	conn   *sqlx.DB
	driver string
}

// Open connects to dsn with the given driver and creates the schema.
// For sqlite, dsn is a file path and may carry a sqlite:// prefix.
func Open(driver, dsn string, maxOpen int) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		return openSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	case DriverPostgres, "postgres":
		return openPostgres(dsn, maxOpen)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
}

func openSQLite(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, driver: DriverSQLite}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func openPostgres(dsn string, maxOpen int) (*DB, error) {
	conn, err := sqlx.Connect(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if maxOpen > 0 {
		conn.SetMaxOpenConns(maxOpen)
	}

	db := &DB{conn: conn, driver: DriverPostgres}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Driver() string {
	return d.driver
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS imports (
  id TEXT PRIMARY KEY,
  run_key TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  year TEXT NOT NULL,
  source_file TEXT NOT NULL,
  source_hash TEXT NOT NULL,
  profile TEXT NOT NULL,
  parsed_at TEXT NOT NULL,
  total_sections INTEGER NOT NULL,
  total_sub_sections INTEGER NOT NULL,
  total_items INTEGER NOT NULL,
  document_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
  id TEXT PRIMARY KEY,
  import_id TEXT NOT NULL REFERENCES imports(id),
  seq INTEGER NOT NULL,
  item_no TEXT NOT NULL,
  item_key TEXT NOT NULL,
  category TEXT NOT NULL,
  title TEXT,
  unit TEXT,
  rate_num %[1]s,
  rate_text TEXT,
  rate_type TEXT,
  year TEXT NOT NULL,
  source_file TEXT NOT NULL,
  parsed_at TEXT NOT NULL,
  search_text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sections_import ON sections(import_id);
CREATE INDEX IF NOT EXISTS idx_sections_item_key ON sections(item_key);
CREATE INDEX IF NOT EXISTS idx_sections_category ON sections(category);
CREATE INDEX IF NOT EXISTS idx_sections_year ON sections(year);
CREATE INDEX IF NOT EXISTS idx_sections_rate ON sections(rate_num);

CREATE TABLE IF NOT EXISTS sub_sections (
  id TEXT PRIMARY KEY,
  section_id TEXT NOT NULL REFERENCES sections(id),
  seq INTEGER NOT NULL,
  sub_id TEXT NOT NULL,
  description TEXT
);
CREATE INDEX IF NOT EXISTS idx_sub_sections_section ON sub_sections(section_id);

CREATE TABLE IF NOT EXISTS rate_items (
  id TEXT PRIMARY KEY,
  section_id TEXT NOT NULL REFERENCES sections(id),
  sub_section_id TEXT REFERENCES sub_sections(id),
  item_id INTEGER NOT NULL,
  section_item_no TEXT NOT NULL,
  dimension TEXT,
  unit TEXT,
  rate_num %[1]s,
  rate_text TEXT,
  rate_type TEXT
);
CREATE INDEX IF NOT EXISTS idx_rate_items_section ON rate_items(section_id);
CREATE INDEX IF NOT EXISTS idx_rate_items_rate ON rate_items(rate_num);
`

const sqliteSearchSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS section_search USING fts5(section_id UNINDEXED, body);
`

const postgresSearchSchema = `
CREATE INDEX IF NOT EXISTS idx_sections_search ON sections USING GIN (to_tsvector('simple', search_text));
`

func (d *DB) init() error {
	if d.driver == DriverPostgres {
		schema := fmt.Sprintf(baseSchema, "DOUBLE PRECISION") + postgresSearchSchema
		_, err := d.conn.Exec(schema)
		return err
	}
	schema := fmt.Sprintf(baseSchema, "REAL") + sqliteSearchSchema
	_, err := d.conn.Exec(schema)
	return err
}

// RunKey identifies one schedule edition: the lower-cased source file name
// and the year. Re-importing the same edition replaces the earlier rows.
func RunKey(sourceFile, year string) string {
	return strings.ToLower(filepath.Base(sourceFile)) + "|" + year
}

// Write stores doc, replacing any earlier import with the same run key.
func (d *DB) Write(ctx context.Context, doc *internal.Document) error {
	_, err := d.SaveDocument(ctx, doc)
	return err
}

// SaveDocument deletes the previous import of the same edition and inserts
// doc in a single transaction. It returns the new import id.
func (d *DB) SaveDocument(ctx context.Context, doc *internal.Document) (string, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	runKey := RunKey(doc.SourceFile, doc.Year)
	if err := d.deleteRun(ctx, tx, runKey); err != nil {
		return "", fmt.Errorf("clear previous import: %w", err)
	}

	importID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, d.conn.Rebind(`
INSERT INTO imports (
  id, run_key, title, year, source_file, source_hash, profile, parsed_at,
  total_sections, total_sub_sections, total_items, document_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`), importID, runKey, doc.Title, doc.Year, doc.SourceFile, doc.SourceHash, doc.Profile, doc.ParsedAt,
		doc.Totals.Sections, doc.Totals.SubSections, doc.Totals.Items, string(blob)); err != nil {
		return "", err
	}

	sectionStmt, err := tx.PreparexContext(ctx, d.conn.Rebind(`
INSERT INTO sections (
  id, import_id, seq, item_no, item_key, category, title, unit,
  rate_num, rate_text, rate_type, year, source_file, parsed_at, search_text
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`))
	if err != nil {
		return "", err
	}
	defer sectionStmt.Close()

	subStmt, err := tx.PreparexContext(ctx, d.conn.Rebind(`
INSERT INTO sub_sections (id, section_id, seq, sub_id, description) VALUES (?, ?, ?, ?, ?)
`))
	if err != nil {
		return "", err
	}
	defer subStmt.Close()

	itemStmt, err := tx.PreparexContext(ctx, d.conn.Rebind(`
INSERT INTO rate_items (
  id, section_id, sub_section_id, item_id, section_item_no, dimension, unit, rate_num, rate_text, rate_type
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`))
	if err != nil {
		return "", err
	}
	defer itemStmt.Close()

	var searchStmt *sqlx.Stmt
	if d.driver == DriverSQLite {
		searchStmt, err = tx.PreparexContext(ctx, `INSERT INTO section_search (section_id, body) VALUES (?, ?)`)
		if err != nil {
			return "", err
		}
		defer searchStmt.Close()
	}

	insertItem := func(sectionID string, subID *string, item *internal.RateItem) error {
		num, text := splitRate(item.Rate)
		_, err := itemStmt.ExecContext(ctx,
			uuid.NewString(), sectionID, subID, item.ID, item.SectionItemNo.String(),
			item.Dimension, item.Unit, num, text, rateType(item.Rate, item.RateType),
		)
		return err
	}

	for _, s := range doc.Sections {
		sectionID := uuid.NewString()
		num, text := splitRate(s.Rate)
		body := searchText(s)
		if _, err := sectionStmt.ExecContext(ctx,
			sectionID, importID, s.ID, s.ItemNo.String(), s.ItemKey, s.Category, s.Title, s.Unit,
			num, text, rateType(s.Rate, s.RateType), doc.Year, doc.SourceFile, doc.ParsedAt, body,
		); err != nil {
			return "", fmt.Errorf("insert section %s: %w", s.ItemKey, err)
		}
		if searchStmt != nil {
			if _, err := searchStmt.ExecContext(ctx, sectionID, body); err != nil {
				return "", err
			}
		}

		for _, item := range s.Items {
			if err := insertItem(sectionID, nil, item); err != nil {
				return "", err
			}
		}
		for i, sub := range s.SubSections {
			subID := uuid.NewString()
			if _, err := subStmt.ExecContext(ctx, subID, sectionID, i+1, sub.SubID, sub.Description); err != nil {
				return "", err
			}
			for _, item := range sub.Items {
				if err := insertItem(sectionID, &subID, item); err != nil {
					return "", err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return importID, nil
}

func (d *DB) deleteRun(ctx context.Context, tx *sqlx.Tx, runKey string) error {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, d.conn.Rebind(`SELECT id FROM imports WHERE run_key = ?`), runKey); err != nil {
		return err
	}

	for _, id := range ids {
		steps := []string{
			`DELETE FROM rate_items WHERE section_id IN (SELECT id FROM sections WHERE import_id = ?)`,
			`DELETE FROM sub_sections WHERE section_id IN (SELECT id FROM sections WHERE import_id = ?)`,
		}
		if d.driver == DriverSQLite {
			steps = append(steps, `DELETE FROM section_search WHERE section_id IN (SELECT id FROM sections WHERE import_id = ?)`)
		}
		steps = append(steps,
			`DELETE FROM sections WHERE import_id = ?`,
			`DELETE FROM imports WHERE id = ?`,
		)
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, d.conn.Rebind(q), id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *DB) ListImports(ctx context.Context) ([]internal.ImportRecord, error) {
	out := []internal.ImportRecord{}
	err := d.conn.SelectContext(ctx, &out, `
SELECT id, run_key, title, year, source_file, source_hash, profile, parsed_at,
       total_sections, total_sub_sections, total_items
FROM imports
ORDER BY year DESC, source_file ASC
`)
	return out, err
}

// ImportByRunKey returns nil when the edition has not been imported.
func (d *DB) ImportByRunKey(ctx context.Context, runKey string) (*internal.ImportRecord, error) {
	var rec internal.ImportRecord
	err := d.conn.GetContext(ctx, &rec, d.conn.Rebind(`
SELECT id, run_key, title, year, source_file, source_hash, profile, parsed_at,
       total_sections, total_sub_sections, total_items
FROM imports WHERE run_key = ?
`), runKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadDocument returns the stored document of an edition, or nil.
func (d *DB) LoadDocument(ctx context.Context, runKey string) (*internal.Document, error) {
	var blob string
	err := d.conn.GetContext(ctx, &blob, d.conn.Rebind(`SELECT document_json FROM imports WHERE run_key = ?`), runKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc internal.Document
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SearchSections runs a full-text query over section titles, sub-section
// descriptions and categories. category narrows the result when non-empty.
func (d *DB) SearchSections(ctx context.Context, text, category string, limit int) ([]internal.SectionHit, error) {
	if limit <= 0 {
		limit = 50
	}

	const columns = `
SELECT s.import_id, s.year, s.item_no, s.item_key, s.category, s.title, s.unit, s.rate_num, s.rate_text,
       (SELECT COUNT(*) FROM rate_items r WHERE r.section_id = s.id) AS item_count
FROM sections s
`
	var (
		where []string
		args  []any
		query string
	)

	if strings.TrimSpace(text) != "" {
		if d.driver == DriverPostgres {
			where = append(where, `to_tsvector('simple', s.search_text) @@ plainto_tsquery('simple', ?)`)
			args = append(args, text)
		} else {
			where = append(where, `s.id IN (SELECT section_id FROM section_search WHERE section_search MATCH ?)`)
			args = append(args, ftsQuery(text))
		}
	}
	if strings.TrimSpace(category) != "" {
		where = append(where, `s.category = ?`)
		args = append(args, category)
	}

	query = columns
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	query += "ORDER BY s.year DESC, s.seq ASC LIMIT ?"
	args = append(args, limit)

	out := []internal.SectionHit{}
	if err := d.conn.SelectContext(ctx, &out, d.conn.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// ftsQuery quotes every word so user input is never read as FTS5 syntax.
func ftsQuery(text string) string {
	words := strings.Fields(text)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

func searchText(s *internal.Section) string {
	parts := []string{s.ItemNo.String(), util.Deref(s.Title), s.Category}
	for _, sub := range s.SubSections {
		parts = append(parts, util.Deref(sub.Description))
	}
	return util.NormalizeSpaces(strings.Join(parts, " "))
}

func splitRate(rate *internal.Cell) (*float64, *string) {
	if rate == nil || rate.IsEmpty() {
		return nil, nil
	}
	if rate.IsNumber() {
		return util.FloatPtr(rate.Number), nil
	}
	return nil, util.StringPtr(rate.Text)
}

func rateType(rate *internal.Cell, t internal.RateType) *string {
	if rate == nil {
		return nil
	}
	return util.StringPtr(string(t))
}
