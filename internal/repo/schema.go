package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DDL таблиц Courier. Частичный индекс по (priority, id) покрывает
// Ready Predicate claim-запроса; без него claim деградирует в seq scan
// и длительность захвата уходит за пороги логирования.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS requests (
		id                 BIGSERIAL PRIMARY KEY,
		priority           INT NOT NULL DEFAULT 9999,
		url                TEXT NOT NULL,
		method             TEXT NOT NULL,
		headers            TEXT,
		payload            TEXT,
		state              TEXT NOT NULL DEFAULT 'ready',
		state_changed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		retry_at           TIMESTAMPTZ,
		retry_count        INT NOT NULL DEFAULT 0,
		retry_factor       INT NOT NULL DEFAULT 2,
		retry_inconsistent BOOLEAN NOT NULL DEFAULT false,
		locked_at          TIMESTAMPTZ,
		completed_at       TIMESTAMPTZ,
		abandoned_at       TIMESTAMPTZ,
		timings_wall_ms    DOUBLE PRECISION NOT NULL DEFAULT 0,
		timings_cpu_ms     DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_claim
		ON requests (priority, id)
		WHERE state = 'ready' AND locked_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_requests_waiting
		ON requests (retry_at)
		WHERE state = 'waiting'`,
	`CREATE TABLE IF NOT EXISTS request_logs (
		id               BIGSERIAL PRIMARY KEY,
		request_id       BIGINT NOT NULL REFERENCES requests (id),
		response_code    INT NOT NULL,
		response_body    TEXT,
		response_headers TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_logs_request
		ON request_logs (request_id, id)`,
}

// EnsureSchema создаёт таблицы и индексы, если их нет.
// Идемпотентна; вызывается при старте воркера.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
