package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthlink/internal/usage"
)

const upsertDaily = `
INSERT INTO monitoramento.metricas_diarias_endpoint
    (endpoint, tipo_evento, metodo_identificacao, data, total_chamadas, respostas_positivas, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, now())
ON CONFLICT (endpoint, tipo_evento, metodo_identificacao, data)
DO UPDATE SET
    total_chamadas      = metricas_diarias_endpoint.total_chamadas + 1,
    respostas_positivas = metricas_diarias_endpoint.respostas_positivas + EXCLUDED.respostas_positivas,
    updated_at          = now()`

const selectDaily = `
SELECT total_chamadas, respostas_positivas
FROM monitoramento.metricas_diarias_endpoint
WHERE endpoint = $1 AND tipo_evento = $2 AND metodo_identificacao = $3 AND data = $4`

// PostgresStore writes daily counters, each increment in its own transaction
// so it can never share fate with a request's reads.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Increment(ctx context.Context, key usage.Key, matched bool) error {
	positive := 0
	if matched {
		positive = 1
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertDaily, key.Endpoint, key.EventType, key.Method, key.Day, positive)
		return err
	})
	if err != nil {
		return fmt.Errorf("increment daily metric: %w", err)
	}
	return nil
}

// Get reads a counter row; a missing row is zero counts.
func (s *PostgresStore) Get(ctx context.Context, key usage.Key) (usage.Counts, error) {
	var c usage.Counts
	err := s.pool.QueryRow(ctx, selectDaily, key.Endpoint, key.EventType, key.Method, key.Day).
		Scan(&c.Calls, &c.Positives)
	if errors.Is(err, pgx.ErrNoRows) {
		return usage.Counts{}, nil
	}
	if err != nil {
		return usage.Counts{}, fmt.Errorf("read daily metric: %w", err)
	}
	return c, nil
}
