package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierhq/courier/internal/domain"
)

// LogRepo — репозиторий append-only журнала попыток доставки.
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append вставляет запись об одной попытке доставки.
func (r *LogRepo) Append(ctx context.Context, log *domain.RequestLog) error {
	var headersJSON *string
	if log.ResponseHeaders != nil {
		raw, err := json.Marshal(log.ResponseHeaders)
		if err != nil {
			return fmt.Errorf("marshal response headers: %w", err)
		}
		s := string(raw)
		headersJSON = &s
	}

	query := `
		INSERT INTO request_logs (request_id, response_code, response_body, response_headers)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		log.RequestID,
		log.ResponseCode,
		log.ResponseBody,
		headersJSON,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// ListByRequestID возвращает все попытки доставки request
// в хронологическом порядке.
func (r *LogRepo) ListByRequestID(ctx context.Context, requestID int64) ([]domain.RequestLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, response_code, response_body, response_headers, created_at
		FROM request_logs
		WHERE request_id = $1
		ORDER BY id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.RequestLog
	for rows.Next() {
		var log domain.RequestLog
		var headersJSON *string

		err := rows.Scan(
			&log.ID,
			&log.RequestID,
			&log.ResponseCode,
			&log.ResponseBody,
			&headersJSON,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}

		if headersJSON != nil {
			var headers http.Header
			if err := json.Unmarshal([]byte(*headersJSON), &headers); err != nil {
				return nil, fmt.Errorf("unmarshal response headers: %w", err)
			}
			log.ResponseHeaders = headers
		}

		logs = append(logs, log)
	}
	return logs, rows.Err()
}
