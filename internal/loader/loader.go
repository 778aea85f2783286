// Package loader bulk-loads offline linkage results from parquet files into
// the relation tables.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of parquet rows decoded per read.
const DefaultBatchSize = 5000

// conflictReportLimit caps how many ownership conflicts are reported per file.
const conflictReportLimit = 5

const stagingTable = "staging_parquet_eventos"

const (
	createStagingSQL = `
CREATE TEMP TABLE ` + stagingTable + ` (
    id_pessoa                  BIGINT NOT NULL,
    tipo_evento                TEXT NOT NULL,
    metodo_identificacao       TEXT NOT NULL,
    data_identificacao         DATE NOT NULL,
    tipo_identificador         TEXT NOT NULL,
    valor_identificador        TEXT NOT NULL,
    banco_origem_identificacao TEXT,
    id_registro_identificacao  TEXT
) ON COMMIT DROP`

	insertIndividualsSQL = `
INSERT INTO monitoramento.individuo (id)
SELECT DISTINCT id_pessoa FROM ` + stagingTable + `
ON CONFLICT (id) DO NOTHING`

	insertIdentifiersSQL = `
INSERT INTO monitoramento.individuo_identificador (individuo_id, tipo_identificador, valor_identificador)
SELECT DISTINCT ON (tipo_identificador, valor_identificador) id_pessoa, tipo_identificador, valor_identificador
FROM ` + stagingTable + `
ORDER BY tipo_identificador, valor_identificador, id_pessoa
ON CONFLICT (tipo_identificador, valor_identificador) DO NOTHING`

	findConflictsSQL = `
SELECT s.tipo_identificador, s.valor_identificador, s.id_pessoa, ii.individuo_id
FROM ` + stagingTable + ` s
JOIN monitoramento.individuo_identificador ii
  ON ii.tipo_identificador = s.tipo_identificador
 AND ii.valor_identificador = s.valor_identificador
WHERE ii.individuo_id <> s.id_pessoa
LIMIT $1`

	insertEventsSQL = `
INSERT INTO monitoramento.individuo_evento
    (individuo_id, tipo_evento, metodo_identificacao, data_identificacao, banco_origem_identificacao, id_registro_identificacao)
SELECT id_pessoa, tipo_evento, metodo_identificacao, data_identificacao, banco_origem_identificacao, id_registro_identificacao
FROM ` + stagingTable + `
ON CONFLICT DO NOTHING`

	realignSequenceSQL = `
SELECT setval(
    pg_get_serial_sequence('monitoramento.individuo', 'id'),
    GREATEST((SELECT COALESCE(MAX(id), 0) FROM monitoramento.individuo), 1),
    true
)`
)

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Counts summarizes one load.
type Counts struct {
	RowsCopied  int64
	RowsSkipped int64
	Individuals int64
	Identifiers int64
	Events      int64
	Conflicts   int
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.RowsCopied += other.RowsCopied
	c.RowsSkipped += other.RowsSkipped
	c.Individuals += other.Individuals
	c.Identifiers += other.Identifiers
	c.Events += other.Events
	c.Conflicts += other.Conflicts
}

func (c Counts) String() string {
	return fmt.Sprintf("rows_copied=%d rows_skipped=%d individuals_inserted=%d identifiers_inserted=%d events_inserted=%d identifier_conflicts=%d",
		c.RowsCopied, c.RowsSkipped, c.Individuals, c.Identifiers, c.Events, c.Conflicts)
}

// IdentifierConflict is an identifier already owned by another individual.
type IdentifierConflict struct {
	Type       string
	Value      string
	NewID      int64
	ExistingID int64
}

// ConflictError aborts a strict load.
type ConflictError struct {
	Path      string
	Conflicts []IdentifierConflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identifier conflict in %q: %s", e.Path, describeConflicts(e.Conflicts))
}

func describeConflicts(cs []IdentifierConflict) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s=%s new=%d existing=%d", c.Type, c.Value, c.NewID, c.ExistingID)
	}
	return strings.Join(parts, "; ")
}

// Loader writes parquet files into PostgreSQL, one transaction per file.
type Loader struct {
	db        DB
	batchSize int
	strict    bool
	logger    *slog.Logger
}

type Option func(*Loader)

func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithStrictIdentifiers aborts a file when any identifier is already owned
// by a different individual.
func WithStrictIdentifiers(strict bool) Option {
	return func(l *Loader) {
		l.strict = strict
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func New(db DB, opts ...Option) *Loader {
	l := &Loader{
		db:        db,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ExpandPaths resolves each argument to parquet files: directories are
// walked recursively for *.parquet, files are taken as given. Missing paths
// are dropped. The result is sorted per argument and de-duplicated.
func ExpandPaths(args []string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	add := func(p string) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".parquet") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", arg, err)
		}
		slices.Sort(found)
		for _, p := range found {
			add(p)
		}
	}
	return out, nil
}

// Preflight checks every file's schema concurrently so a bad file fails the
// run before anything is written.
func Preflight(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := OpenSource(p, 1)
			if err != nil {
				return err
			}
			return src.Close()
		})
	}
	return g.Wait()
}

// LoadAll loads files in order, reporting each through report. It stops at
// the first failing file; files already committed stay committed.
func (l *Loader) LoadAll(ctx context.Context, paths []string, report func(path string, c Counts)) (Counts, error) {
	var total Counts
	for _, p := range paths {
		c, err := l.LoadFile(ctx, p)
		if err != nil {
			return total, fmt.Errorf("load %q: %w", p, err)
		}
		if report != nil {
			report(p, c)
		}
		total.Add(c)
	}
	return total, nil
}

// LoadFile stages one file and merges it inside a single transaction.
func (l *Loader) LoadFile(ctx context.Context, path string) (Counts, error) {
	src, err := OpenSource(path, l.batchSize)
	if err != nil {
		return Counts{}, err
	}
	defer src.Close()

	var counts Counts
	err = pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createStagingSQL); err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}

		copySrc := &copySource{src: src}
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, Columns, copySrc)
		if err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
		counts.RowsCopied = copied
		counts.RowsSkipped = copySrc.skipped

		tag, err := tx.Exec(ctx, insertIndividualsSQL)
		if err != nil {
			return fmt.Errorf("insert individuals: %w", err)
		}
		counts.Individuals = tag.RowsAffected()

		tag, err = tx.Exec(ctx, insertIdentifiersSQL)
		if err != nil {
			return fmt.Errorf("insert identifiers: %w", err)
		}
		counts.Identifiers = tag.RowsAffected()

		conflicts, err := findConflicts(ctx, tx)
		if err != nil {
			return err
		}
		counts.Conflicts = len(conflicts)
		if len(conflicts) > 0 {
			if l.strict {
				return &ConflictError{Path: path, Conflicts: conflicts}
			}
			l.logger.WarnContext(ctx, "identifier conflict",
				"file", path,
				"conflicts", describeConflicts(conflicts),
			)
		}

		tag, err = tx.Exec(ctx, insertEventsSQL)
		if err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		counts.Events = tag.RowsAffected()

		if _, err := tx.Exec(ctx, realignSequenceSQL); err != nil {
			return fmt.Errorf("realign individual sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}

func findConflicts(ctx context.Context, tx pgx.Tx) ([]IdentifierConflict, error) {
	rows, err := tx.Query(ctx, findConflictsSQL, conflictReportLimit)
	if err != nil {
		return nil, fmt.Errorf("find identifier conflicts: %w", err)
	}
	conflicts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[IdentifierConflict])
	if err != nil {
		return nil, fmt.Errorf("scan identifier conflicts: %w", err)
	}
	return conflicts, nil
}

// copySource adapts a Source to pgx.CopyFromSource, normalizing rows on the
// way and skipping those without an individual.
type copySource struct {
	src     *Source
	row     int64
	current Record
	skipped int64
	err     error
}

func (c *copySource) Next() bool {
	for {
		raw, err := c.src.Next()
		if errors.Is(err, io.EOF) {
			return false
		}
		c.row++
		if err != nil {
			c.err = fmt.Errorf("row %d: %w", c.row, err)
			return false
		}
		rec, ok, err := Prepare(raw)
		if err != nil {
			c.err = fmt.Errorf("row %d: %w", c.row, err)
			return false
		}
		if !ok {
			c.skipped++
			continue
		}
		c.current = rec
		return true
	}
}

func (c *copySource) Values() ([]any, error) {
	return c.current.Values(), nil
}

func (c *copySource) Err() error {
	return c.err
}
