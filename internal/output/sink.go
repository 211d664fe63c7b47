package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ssr/internal/pipeline"
	"ssr/internal/storage"
)

var ErrUnsupportedOutput = errors.New("unsupported output")

// Options carries what the sinks need besides the target path.
type Options struct {
	S3        S3Options
	DBMaxOpen int
	Stdout    io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open picks the sink for target:
//
//	-                      JSON on stdout
//	*.json                 JSON file
//	s3://bucket/key        JSON upload
//	*.db, sqlite://path    SQLite
//	postgres://...         Postgres
//	*.xlsx                 flattened rate sheet
//
// The returned closer releases database connections.
func Open(ctx context.Context, target string, opts Options) (pipeline.Sink, io.Closer, error) {
	target = strings.TrimSpace(target)
	lower := strings.ToLower(target)

	switch {
	case target == "" || target == "-":
		return JSONSink{Path: "-", Stdout: opts.Stdout}, nopCloser{}, nil
	case strings.HasSuffix(lower, ".json"):
		return JSONSink{Path: target}, nopCloser{}, nil
	case strings.HasPrefix(lower, "s3://"):
		sink, err := NewS3Sink(ctx, opts.S3, target)
		if err != nil {
			return nil, nil, err
		}
		return sink, nopCloser{}, nil
	case strings.HasPrefix(lower, "sqlite://") || strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite"):
		db, err := storage.Open(storage.DriverSQLite, target, opts.DBMaxOpen)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		db, err := storage.Open(storage.DriverPostgres, target, opts.DBMaxOpen)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case strings.HasSuffix(lower, ".xlsx"):
		return pipeline.XLSXSink{Path: target}, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedOutput, target)
	}
}
