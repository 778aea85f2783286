package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthlink/internal/relation/models"
	"healthlink/pkg/platform/sentinel"
	txcontext "healthlink/pkg/platform/tx"
)

var tracer = otel.Tracer("healthlink/internal/relation/store")

const findIndividuals = `
SELECT DISTINCT ii.individuo_id
FROM monitoramento.individuo_identificador ii
JOIN unnest($1::text[], $2::text[]) AS p(tipo, valor)
  ON ii.tipo_identificador = p.tipo AND ii.valor_identificador = p.valor
ORDER BY ii.individuo_id`

const findTopEvent = `
SELECT id, individuo_id, tipo_evento, data_identificacao, metodo_identificacao,
       banco_origem_identificacao, id_registro_identificacao
FROM monitoramento.individuo_evento
WHERE individuo_id = $1
  AND tipo_evento = $2
  AND metodo_identificacao <> $3
ORDER BY CASE metodo_identificacao WHEN $4 THEN 0 ELSE 1 END,
         data_identificacao DESC,
         id DESC
LIMIT 1`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads identifiers and events from the monitoramento schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// RunInReadTx runs fn inside one read-only transaction; store calls made with
// the ctx passed to fn share it. The connection is released on every path.
func (s *PostgresStore) RunInReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit read transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) execer(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) FindIndividuals(ctx context.Context, set models.IdentifierSet) ([]models.IndividualID, error) {
	ctx, span := tracer.Start(ctx, "store.FindIndividuals", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("identifiers", set.Len()))

	types, values := set.Columns()
	rows, err := s.execer(ctx).Query(ctx, findIndividuals, types, values)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find individuals: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find individuals: %w", err)
	}

	out := make([]models.IndividualID, len(ids))
	for i, id := range ids {
		out[i] = models.IndividualID(id)
	}
	span.SetAttributes(attribute.Int("individuals", len(out)))
	return out, nil
}

func (s *PostgresStore) FindTopEvent(ctx context.Context, id models.IndividualID, eventType models.EventType) (*models.Event, error) {
	ctx, span := tracer.Start(ctx, "store.FindTopEvent", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var (
		e          models.Event
		individual int64
		evType     string
		method     string
	)
	err := s.execer(ctx).QueryRow(ctx, findTopEvent,
		int64(id), string(eventType), string(models.MethodNone), string(models.MethodExplicitSemantic),
	).Scan(&e.ID, &individual, &evType, &e.Date, &method, &e.SourceBank, &e.SourceRecordID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find top event: %w", err)
	}

	e.IndividualID = models.IndividualID(individual)
	e.Type = models.EventType(evType)
	e.Method = models.Method(method)
	return &e, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.execer(ctx).Exec(ctx, "SELECT 1")
	return err
}
