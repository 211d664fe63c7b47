package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"ssr/internal/config"
	"ssr/internal/logger"
	"ssr/internal/output"
	"ssr/internal/pipeline"
	"ssr/internal/remote"
	"ssr/internal/storage"
	"ssr/internal/util"
	"ssr/internal/watcher"
)

var log = zap.NewNop()

func main() {
	cfg, err := config.Load()
	must(err)

	log, err = logger.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = log.Sync() }()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		flags := importFlags(fs, cfg)
		args := parseInterspersed(fs, os.Args[2:])
		opts := flags.options(cfg, args)
		must(cfg.Require("input", opts.Input))
		out := cfg.OutputPath
		if len(args) > 1 {
			out = args[1]
		}

		svc := newImportService(cfg, *flags.profile)
		sink, closer, err := output.Open(ctx, out, sinkOptions(cfg))
		must(err)
		defer closer.Close()

		res, err := svc.Run(ctx, opts, sink)
		must(err)
		if out != "-" {
			fmt.Printf("run done sections=%d sub_sections=%d items=%d output=%s\n",
				res.Document.Totals.Sections, res.Document.Totals.SubSections, res.Document.Totals.Items, out)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		flags := importFlags(fs, cfg)
		args := parseInterspersed(fs, os.Args[2:])
		if len(args) < 2 {
			must(fmt.Errorf("usage: ssr export:xlsx <input> <out.xlsx>"))
		}
		opts := flags.options(cfg, args)

		svc := newImportService(cfg, *flags.profile)
		res, err := svc.Parse(ctx, opts)
		must(err)
		rows := pipeline.FlattenRates(res.Document)
		if len(rows) == 0 {
			must(fmt.Errorf("no rates found in %s", opts.Input))
		}
		must(pipeline.ExportRowsToXLSX(rows, args[1]))
		fmt.Printf("exported %d rows to %s\n", len(rows), args[1])
	case "summary":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		flags := importFlags(fs, cfg)
		args := parseInterspersed(fs, os.Args[2:])
		opts := flags.options(cfg, args)
		must(cfg.Require("input", opts.Input))

		svc := newImportService(cfg, *flags.profile)
		res, err := svc.Parse(ctx, opts)
		must(err)
		printSummary(res)
	case "search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dsn := fs.String("db", cfg.DBDSN, "sqlite path or postgres:// dsn")
		category := fs.String("category", "", "exact category filter")
		limit := fs.Int("limit", 50, "max hits")
		args := parseInterspersed(fs, os.Args[2:])

		db := openDB(cfg, *dsn)
		defer db.Close()
		hits, err := db.SearchSections(ctx, strings.Join(args, " "), *category, *limit)
		must(err)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Year", "Item", "Category", "Title", "Unit", "Rate", "Items"})
		for _, h := range hits {
			rate := util.Deref(h.RateText)
			if h.RateNum != nil {
				rate = strconv.FormatFloat(*h.RateNum, 'f', -1, 64)
			}
			table.Append([]string{h.Year, h.ItemNo, h.Category, shorten(util.Deref(h.Title), 60), util.Deref(h.Unit), rate, strconv.Itoa(h.Items)})
		}
		table.Render()
	case "imports":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dsn := fs.String("db", cfg.DBDSN, "sqlite path or postgres:// dsn")
		_ = fs.Parse(os.Args[2:])

		db := openDB(cfg, *dsn)
		defer db.Close()
		imports, err := db.ListImports(ctx)
		must(err)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Year", "Source", "Title", "Sections", "Items", "Parsed"})
		for _, rec := range imports {
			table.Append([]string{rec.Year, rec.SourceFile, shorten(rec.Title, 50), strconv.Itoa(rec.Sections), strconv.Itoa(rec.Items), rec.ParsedAt})
		}
		table.Render()
	case "watch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		flags := importFlags(fs, cfg)
		args := parseInterspersed(fs, os.Args[2:])
		opts := flags.options(cfg, args)
		must(cfg.Require("input", opts.Input))
		if pipeline.IsRemote(opts.Input) {
			must(fmt.Errorf("watch needs a local file: %s", opts.Input))
		}
		out := cfg.OutputPath
		if len(args) > 1 {
			out = args[1]
		}

		svc := newImportService(cfg, *flags.profile)
		sink, closer, err := output.Open(ctx, out, sinkOptions(cfg))
		must(err)
		defer closer.Close()

		w := watcher.NewService(svc, sink, watcher.Options{Import: opts, Debounce: cfg.WatchDebounce()}, log)
		must(w.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

type commonFlags struct {
	inputType *string
	sheet     *string
	profile   *string
	title     *string
	year      *string
}

func importFlags(fs *flag.FlagSet, cfg config.Config) commonFlags {
	return commonFlags{
		inputType: fs.String("type", cfg.InputType, "xlsx|html|pdf|eml (default: from extension)"),
		sheet:     fs.String("sheet", cfg.InputSheet, "worksheet name (default: first sheet)"),
		profile:   fs.String("profile", cfg.ProfilePath, "YAML profile path"),
		title:     fs.String("title", cfg.Title, "document title override"),
		year:      fs.String("year", cfg.Year, "schedule year override"),
	}
}

func (f commonFlags) options(cfg config.Config, args []string) pipeline.ImportOptions {
	input := cfg.InputPath
	if len(args) > 0 {
		input = args[0]
	}
	return pipeline.ImportOptions{
		Input: input,
		Type:  *f.inputType,
		Sheet: *f.sheet,
		Title: *f.title,
		Year:  *f.year,
	}
}

// parseInterspersed lets flags follow positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for {
		_ = fs.Parse(args)
		rest := fs.Args()
		if len(rest) == 0 {
			return positional
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func newImportService(cfg config.Config, profilePath string) *pipeline.ImportService {
	profile := pipeline.DefaultProfile()
	if strings.TrimSpace(profilePath) != "" {
		var err error
		profile, err = pipeline.LoadProfile(profilePath)
		must(err)
	}
	rules, err := profile.Compile()
	must(err)
	log.Debug("profile loaded",
		zap.String("profile", rules.Name),
		zap.Int("categories", rules.Categories().Len()),
	)

	fetcher := remote.NewClient(remote.Options{
		Timeout:     cfg.FetchTimeout(),
		RateLimit:   cfg.FetchRateLimitRPS,
		MaxAttempts: cfg.FetchMaxAttempts,
	}, log)
	return pipeline.NewImportService(rules, fetcher, cfg.ArchiveDir, log)
}

func sinkOptions(cfg config.Config) output.Options {
	return output.Options{
		S3: output.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
		DBMaxOpen: cfg.DBMaxOpen,
	}
}

func openDB(cfg config.Config, dsn string) *storage.DB {
	driver := cfg.DBDriver
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		driver = storage.DriverPostgres
	} else if strings.HasPrefix(lower, "sqlite://") {
		driver = storage.DriverSQLite
	}
	db, err := storage.Open(driver, dsn, cfg.DBMaxOpen)
	must(err)
	log.Debug("database opened", zap.String("driver", db.Driver()))
	return db
}

func printSummary(res pipeline.ImportResult) {
	doc := res.Document
	fmt.Printf("%s\n", doc.Title)
	fmt.Printf("year=%s source=%s rows=%d sections=%d sub_sections=%d items=%d\n",
		doc.Year, doc.SourceFile, res.Rows, doc.Totals.Sections, doc.Totals.SubSections, doc.Totals.Items)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Item", "Category", "Title", "Subs", "Items", "Rate"})
	for _, s := range doc.Sections {
		rate := ""
		if s.Rate != nil {
			rate = s.Rate.String()
		}
		table.Append([]string{
			strconv.Itoa(s.ID), s.ItemNo.String(), s.Category, shorten(util.Deref(s.Title), 60),
			strconv.Itoa(len(s.SubSections)), strconv.Itoa(len(s.AllItems())), rate,
		})
	}
	table.Render()

	roles := make([]string, 0, len(res.Counts))
	for role := range res.Counts {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	parts := make([]string, 0, len(roles))
	for _, role := range roles {
		parts = append(parts, fmt.Sprintf("%s=%d", role, res.Counts[pipeline.RowRole(role)]))
	}
	fmt.Printf("rows by role: %s\n", strings.Join(parts, " "))
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func usage() {
	fmt.Println("usage: ssr <command>")
	fmt.Println("commands:")
	fmt.Println("  run <input> [output] [--type=xlsx|html|pdf|eml] [--sheet=...] [--profile=...] [--title=...] [--year=...]")
	fmt.Println("      output: - | out.json | s3://bucket/key | rates.db | sqlite://path | postgres://... | out.xlsx")
	fmt.Println("  export:xlsx <input> <out.xlsx>")
	fmt.Println("  summary <input>")
	fmt.Println("  search [--db=...] [--category=...] <query>")
	fmt.Println("  imports [--db=...]")
	fmt.Println("  watch <input> [output]")
}

func must(err error) {
	if err == nil {
		return
	}
	log.Error("command failed", zap.Error(err))
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
