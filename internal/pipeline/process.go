package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ssr/internal"
	"ssr/internal/util"
)

// Sink receives a fully assembled document.
type Sink interface {
	Write(ctx context.Context, doc *internal.Document) error
}

type ImportOptions struct {
	Input string
	Type  string
	Sheet string
	Title string
	Year  string
}

type ImportResult struct {
	RunID    string
	Document *internal.Document
	Source   Source
	Counts   map[RowRole]int
	Rows     int
}

type ImportService struct {
	rules      *Rules
	fetcher    Fetcher
	archiveDir string
	log        *zap.Logger
	now        func() time.Time
}

func NewImportService(rules *Rules, fetcher Fetcher, archiveDir string, log *zap.Logger) *ImportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportService{rules: rules, fetcher: fetcher, archiveDir: archiveDir, log: log, now: time.Now}
}

// Parse loads the input and builds the document without writing it anywhere.
func (s *ImportService) Parse(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	src, err := LoadSource(ctx, opts.Input, opts.Type, s.fetcher)
	if err != nil {
		return ImportResult{}, err
	}
	if path, err := ArchiveSource(s.archiveDir, src); err != nil {
		s.log.Warn("archive source failed", zap.String("source", src.Name), zap.Error(err))
	} else if path != "" {
		s.log.Debug("source archived", zap.String("path", path))
	}
	return s.ParseSource(src, opts)
}

// ParseSource builds the document from an already loaded source.
func (s *ImportService) ParseSource(src Source, opts ImportOptions) (ImportResult, error) {
	start := s.now()
	rows, err := ExtractRows(src, ExtractOptions{Sheet: opts.Sheet, Columns: s.rules.Columns})
	if err != nil {
		return ImportResult{}, err
	}

	b := s.rules.Build(rows)
	title := util.FirstNonEmpty(opts.Title, DiscoverTitle(rows, s.rules.HeaderRows), src.Name)
	year := util.FirstNonEmpty(opts.Year, DiscoverYear(title, src.Name))
	doc := AssembleDocument(b.Sections(), DocumentMeta{
		Title:      title,
		Year:       year,
		SourceFile: src.Name,
		SourceHash: src.Hash(),
		Profile:    s.rules.Name,
		ParsedAt:   start,
	})

	counts := b.Counts()
	runID := uuid.NewString()
	s.log.Info("schedule parsed",
		zap.String("run", runID),
		zap.String("source", src.Name),
		zap.String("type", string(src.Type)),
		zap.Int("rows", len(rows)),
		zap.Int("sections", doc.Totals.Sections),
		zap.Int("subSections", doc.Totals.SubSections),
		zap.Int("items", doc.Totals.Items),
		zap.Int("ignored", counts[RoleIgnored]),
		zap.Duration("took", time.Since(start)),
	)
	return ImportResult{RunID: runID, Document: doc, Source: src, Counts: counts, Rows: len(rows)}, nil
}

// Run parses the input and hands the document to every sink in order.
func (s *ImportService) Run(ctx context.Context, opts ImportOptions, sinks ...Sink) (ImportResult, error) {
	res, err := s.Parse(ctx, opts)
	if err != nil {
		return ImportResult{}, err
	}
	for _, sink := range sinks {
		if err := sink.Write(ctx, res.Document); err != nil {
			return res, err
		}
	}
	return res, nil
}
