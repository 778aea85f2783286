// Command loader bulk-loads offline linkage results (.parquet) into the
// relation tables.
//
//	loader -parquet results/ -parquet extra.parquet [-database-url ...] [-batch-size 5000] [-strict-identifier]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"healthlink/internal/loader"
	"healthlink/internal/platform/config"
	"healthlink/internal/platform/logger"
	"healthlink/internal/platform/postgres"
)

type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

type options struct {
	paths       pathList
	databaseURL string
	batchSize   int
	strict      bool
}

func parseFlags(args []string, getenv func(string) string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("loader", flag.ContinueOnError)
	fs.Var(&opts.paths, "parquet", "parquet file or directory of .parquet files (repeatable)")
	fs.StringVar(&opts.databaseURL, "database-url", getenv("DATABASE_URL"), "database URL (default: $DATABASE_URL)")
	fs.IntVar(&opts.batchSize, "batch-size", loader.DefaultBatchSize, "rows decoded per parquet read")
	fs.BoolVar(&opts.strict, "strict-identifier", false, "fail when an identifier already belongs to a different individual")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if len(opts.paths) == 0 {
		return options{}, fmt.Errorf("at least one -parquet is required")
	}
	opts.databaseURL = config.NormalizeDatabaseURL(opts.databaseURL)
	if opts.databaseURL == "" {
		return options{}, fmt.Errorf("DATABASE_URL not set (use -database-url or env DATABASE_URL)")
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "loader:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args, os.Getenv)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"), "text")

	paths, err := loader.ExpandPaths(opts.paths)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .parquet files found")
	}
	if err := loader.Preflight(ctx, paths); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, config.Database{URL: opts.databaseURL, PoolSize: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	l := loader.New(pool,
		loader.WithBatchSize(opts.batchSize),
		loader.WithStrictIdentifiers(opts.strict),
		loader.WithLogger(log),
	)
	total, err := l.LoadAll(ctx, paths, func(path string, c loader.Counts) {
		fmt.Fprintf(out, "OK: %s -> %s\n", path, c)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "TOTAL: %s\n", total)
	return nil
}
