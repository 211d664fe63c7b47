package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"ssr/internal/pipeline"
)

// Importer parses one input into a document.
type Importer interface {
	Parse(ctx context.Context, opts pipeline.ImportOptions) (pipeline.ImportResult, error)
}

type Options struct {
	Import   pipeline.ImportOptions
	Debounce time.Duration
}

// Service re-imports a schedule file whenever it changes on disk.
type Service struct {
	importer Importer
	sink     pipeline.Sink
	opts     Options
	log      *zap.Logger
	lastHash string
}

func NewService(importer Importer, sink pipeline.Sink, opts Options, log *zap.Logger) *Service {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{importer: importer, sink: sink, opts: opts, log: log}
}

// RunOnce imports the file and writes it to the sink unless its content
// hash matches the previous run. It reports whether the sink was written.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	res, err := s.importer.Parse(ctx, s.opts.Import)
	if err != nil {
		return false, err
	}
	hash := res.Source.Hash()
	if hash == s.lastHash {
		s.log.Debug("source unchanged", zap.String("source", res.Source.Name))
		return false, nil
	}
	if err := s.sink.Write(ctx, res.Document); err != nil {
		return false, err
	}
	s.lastHash = hash
	s.log.Info("schedule imported",
		zap.String("run", res.RunID),
		zap.String("source", res.Source.Name),
		zap.Int("sections", res.Document.Totals.Sections),
		zap.Int("items", res.Document.Totals.Items),
	)
	return true, nil
}

// Run imports once, then watches the file's directory until ctx is done.
// The directory is watched so editors that replace the file are seen.
func (s *Service) Run(ctx context.Context) error {
	target, err := filepath.Abs(s.opts.Import.Input)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("initial import failed", zap.Error(err))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	changed := make(chan struct{}, 1)
	debouncer := NewDebouncer(s.opts.Debounce, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	s.log.Info("watching", zap.String("path", target), zap.Duration("debounce", s.opts.Debounce))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev, target) {
				debouncer.Trigger(target)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watch error", zap.Error(err))
		case <-changed:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Error("import failed", zap.Error(err))
			}
		}
	}
}

func relevant(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
