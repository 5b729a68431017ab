package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierhq/courier/internal/domain"
	"github.com/courierhq/courier/internal/seal"
)

// requestColumns — колонки requests в порядке сканирования.
const requestColumns = `id, priority, url, method, headers, payload, state, state_changed_at,
	retry_at, retry_count, retry_factor, retry_inconsistent, locked_at,
	completed_at, abandoned_at, timings_wall_ms, timings_cpu_ms, created_at`

// RequestRepo — репозиторий для работы с requests.
//
// Экспонирует семантические операции очереди доставки:
// атомарный захват батча, переходы состояний, sweep из waiting
// и административные действия.
type RequestRepo struct {
	pool   *pgxpool.Pool
	sealer *seal.Sealer
}

// NewRequestRepo создаёт новый RequestRepo.
// sealer nil — шифрование заголовков выключено.
func NewRequestRepo(pool *pgxpool.Pool, sealer *seal.Sealer) *RequestRepo {
	if sealer == nil {
		sealer, _ = seal.New("", nil)
	}
	return &RequestRepo{pool: pool, sealer: sealer}
}

// Ping проверяет соединение с БД (используется воркером при useDbReconnect).
func (r *RequestRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Create вставляет новый request в состоянии ready.
func (r *RequestRepo) Create(ctx context.Context, req *domain.Request) error {
	headersJSON, err := r.marshalHeaders(req.Headers)
	if err != nil {
		return err
	}

	factor := req.RetryFactor
	if factor <= 0 {
		factor = domain.DefaultRetryFactor
	}

	query := `
		INSERT INTO requests (priority, url, method, headers, payload, state,
			state_changed_at, retry_factor, retry_inconsistent)
		VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8)
		RETURNING id, state_changed_at, created_at
	`
	err = r.pool.QueryRow(ctx, query,
		req.Priority,
		req.URL,
		req.Method,
		headersJSON,
		nullString(req.Payload),
		domain.StateReady,
		factor,
		req.RetryInconsistent,
	).Scan(&req.ID, &req.StateChangedAt, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	req.State = domain.StateReady
	req.RetryFactor = factor
	return nil
}

// GetByID возвращает request по ID.
func (r *RequestRepo) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	return r.scanRequest(r.pool.QueryRow(ctx, query, id))
}

// List возвращает requests, опционально отфильтрованные по состоянию.
func (r *RequestRepo) List(ctx context.Context, state domain.RequestState, limit int) ([]domain.Request, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows pgx.Rows
		err  error
	)
	if state == "" {
		rows, err = r.pool.Query(ctx,
			`SELECT `+requestColumns+` FROM requests ORDER BY id DESC LIMIT $1`, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+requestColumns+` FROM requests WHERE state = $1 ORDER BY id DESC LIMIT $2`, state, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// ClaimReadyBatch атомарно захватывает до limit готовых строк.
//
// В одной транзакции: SELECT по Ready Predicate (state=ready,
// locked_at IS NULL) в порядке (priority, id) с FOR UPDATE SKIP LOCKED,
// затем UPDATE в pending со штампом блокировки. Транзакция повторяется
// до 5 раз при deadlock. Возвращает ids захваченных строк.
func (r *RequestRepo) ClaimReadyBatch(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		ids = ids[:0]

		rows, err := tx.Query(ctx, `
			SELECT id FROM requests
			WHERE state = $1 AND locked_at IS NULL
			ORDER BY priority ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, domain.StateReady, limit)
		if err != nil {
			return fmt.Errorf("select ready: %w", err)
		}

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan ready id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate ready ids: %w", err)
		}

		if len(ids) == 0 {
			return nil
		}

		ct, err := tx.Exec(ctx, `
			UPDATE requests
			SET state = $1, locked_at = now(), state_changed_at = now()
			WHERE id = ANY($2)
		`, domain.StatePending, ids)
		if err != nil {
			return fmt.Errorf("mark pending: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrClaimFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Load возвращает полные строки по ids в порядке (priority, id).
func (r *RequestRepo) Load(ctx context.Context, ids []int64) ([]domain.Request, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE id = ANY($1)
		ORDER BY priority ASC, id ASC
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// Complete фиксирует успешную доставку. Снимает блокировку атомарно
// с переходом состояния, чтобы инвариант pending⇔locked держался
// на каждом отдельном UPDATE.
func (r *RequestRepo) Complete(ctx context.Context, id int64, info domain.AttemptInfo) error {
	return r.transition(ctx, id, `
		UPDATE requests
		SET state = $2, state_changed_at = now(), completed_at = now(),
			locked_at = NULL, retry_at = NULL,
			retry_count = retry_count + $3,
			timings_wall_ms = $4, timings_cpu_ms = $5
		WHERE id = $1
	`, domain.StateCompleted, bumpOf(info), info.WallMs, info.CPUMs)
}

// Fail фиксирует вердикт системы: доставка не состоится.
func (r *RequestRepo) Fail(ctx context.Context, id int64, info domain.AttemptInfo) error {
	return r.transition(ctx, id, `
		UPDATE requests
		SET state = $2, state_changed_at = now(),
			locked_at = NULL, retry_at = NULL,
			retry_count = retry_count + $3,
			timings_wall_ms = $4, timings_cpu_ms = $5
		WHERE id = $1
	`, domain.StateFailed, bumpOf(info), info.WallMs, info.CPUMs)
}

// Defer откладывает request в waiting до retryAt.
func (r *RequestRepo) Defer(ctx context.Context, id int64, retryAt time.Time, info domain.AttemptInfo) error {
	return r.transition(ctx, id, `
		UPDATE requests
		SET state = $2, state_changed_at = now(),
			locked_at = NULL, retry_at = $3,
			retry_count = retry_count + $4,
			timings_wall_ms = $5, timings_cpu_ms = $6
		WHERE id = $1
	`, domain.StateWaiting, retryAt, bumpOf(info), info.WallMs, info.CPUMs)
}

// Unlock безусловно снимает штамп блокировки.
// Вызывается воркером в конце обработки каждой строки; после
// Complete/Fail/Defer это no-op.
func (r *RequestRepo) Unlock(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE requests SET locked_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unlock request: %w", err)
	}
	return nil
}

// PromoteWaiting продвигает строки с истёкшим retry_at обратно в ready.
// Set-based и идемпотентна: конкурентные вызовы из нескольких воркеров
// безвредны. Возвращает количество продвинутых строк.
func (r *RequestRepo) PromoteWaiting(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE requests
		SET state = $1, retry_at = NULL, state_changed_at = now()
		WHERE state = $2 AND retry_at <= now()
	`, domain.StateReady, domain.StateWaiting)
	if err != nil {
		return 0, fmt.Errorf("promote waiting: %w", err)
	}
	return ct.RowsAffected(), nil
}

// CountByState возвращает количество requests в каждом состоянии.
func (r *RequestRepo) CountByState(ctx context.Context) (map[domain.RequestState]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT state, COUNT(*) FROM requests GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RequestState]int64)
	for rows.Next() {
		var state domain.RequestState
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// Abandon — внешнее действие оператора: прекратить доставку.
// Отказывает строкам в терминальном состоянии.
func (r *RequestRepo) Abandon(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE requests
		SET state = $2, state_changed_at = now(), abandoned_at = now(),
			locked_at = NULL, retry_at = NULL
		WHERE id = $1 AND state NOT IN ($3, $4, $5)
	`, id, domain.StateAbandoned, domain.StateCompleted, domain.StateFailed, domain.StateAbandoned)
	if err != nil {
		return fmt.Errorf("abandon request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return r.explainNoop(ctx, id)
	}
	return nil
}

// AdminUnlock — восстановление застрявшей pending-строки:
// возврат в ready со снятием блокировки. Только для state=pending;
// автоматического reaping намеренно нет.
func (r *RequestRepo) AdminUnlock(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE requests
		SET state = $2, locked_at = NULL, state_changed_at = now()
		WHERE id = $1 AND state = $3
	`, id, domain.StateReady, domain.StatePending)
	if err != nil {
		return fmt.Errorf("admin unlock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return r.explainNoop(ctx, id)
	}
	return nil
}

// RetryNow немедленно продвигает одну waiting-строку в ready.
func (r *RequestRepo) RetryNow(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE requests
		SET state = $2, retry_at = NULL, state_changed_at = now()
		WHERE id = $1 AND state = $3
	`, id, domain.StateReady, domain.StateWaiting)
	if err != nil {
		return fmt.Errorf("retry now: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return r.explainNoop(ctx, id)
	}
	return nil
}

// --- Helpers ---

// transition выполняет атомарный UPDATE перехода состояния.
func (r *RequestRepo) transition(ctx context.Context, id int64, query string, args ...any) error {
	allArgs := append([]any{id}, args...)
	ct, err := r.pool.Exec(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("update request state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// explainNoop различает «строка не существует» и «строка в неподходящем
// состоянии» для административных операций.
func (r *RequestRepo) explainNoop(ctx context.Context, id int64) error {
	req, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: request %d is %s", ErrInvalidState, id, req.State)
}

func (r *RequestRepo) marshalHeaders(headers map[string]string) (*string, error) {
	if len(headers) == 0 {
		return nil, nil
	}

	sealed, err := r.sealer.SealHeaders(headers)
	if err != nil {
		return nil, fmt.Errorf("seal headers: %w", err)
	}

	raw, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func (r *RequestRepo) unmarshalHeaders(headersJSON *string) (map[string]string, error) {
	if headersJSON == nil || *headersJSON == "" {
		return nil, nil
	}

	var sealed map[string]string
	if err := json.Unmarshal([]byte(*headersJSON), &sealed); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}

	headers, err := r.sealer.OpenHeaders(sealed)
	if err != nil {
		return nil, fmt.Errorf("open headers: %w", err)
	}
	return headers, nil
}

func (r *RequestRepo) scanRequest(row pgx.Row) (*domain.Request, error) {
	req, err := scanRequestFields(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	req.Headers, err = r.unmarshalHeaders(req.headersJSON)
	if err != nil {
		return nil, err
	}
	return &req.Request, nil
}

func (r *RequestRepo) collectRequests(rows pgx.Rows) ([]domain.Request, error) {
	var requests []domain.Request
	for rows.Next() {
		req, err := scanRequestFields(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		req.Headers, err = r.unmarshalHeaders(req.headersJSON)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req.Request)
	}
	return requests, rows.Err()
}

// scannedRequest — request плюс сырой JSON заголовков до расшифровки.
type scannedRequest struct {
	domain.Request
	headersJSON *string
}

func scanRequestFields(row pgx.Row) (scannedRequest, error) {
	var req scannedRequest
	var payload *string

	err := row.Scan(
		&req.ID,
		&req.Priority,
		&req.URL,
		&req.Method,
		&req.headersJSON,
		&payload,
		&req.State,
		&req.StateChangedAt,
		&req.RetryAt,
		&req.RetryCount,
		&req.RetryFactor,
		&req.RetryInconsistent,
		&req.LockedAt,
		&req.CompletedAt,
		&req.AbandonedAt,
		&req.TimingsWallMs,
		&req.TimingsCPUMs,
		&req.CreatedAt,
	)
	if err != nil {
		return req, err
	}

	if payload != nil {
		req.Payload = *payload
	}
	return req, nil
}

func bumpOf(info domain.AttemptInfo) int {
	if info.CountAttempt {
		return 1
	}
	return 0
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
