package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

const stateRowID = 1

// PostgresState хранит дату последней публикации в одной строке таблицы lunch_state.
type PostgresState struct {
	pool *pgxpool.Pool
}

var _ domain.StateStore = (*PostgresState)(nil)

// NewPostgresState создаёт хранилище состояния.
func NewPostgresState(pool *pgxpool.Pool) *PostgresState {
	return &PostgresState{pool: pool}
}

// EnsureSchema создаёт таблицу, если её нет.
func (p *PostgresState) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lunch_state (
	id          SMALLINT PRIMARY KEY,
	last_posted DATE NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("создание lunch_state: %w", err)
	}
	return nil
}

// LastPosted возвращает сохранённую дату.
func (p *PostgresState) LastPosted(ctx context.Context) (domain.Date, error) {
	start := time.Now()
	var posted time.Time
	err := p.pool.QueryRow(ctx, `SELECT last_posted FROM lunch_state WHERE id=$1`, stateRowID).Scan(&posted)
	metrics.ObserveNetworkRequest("postgres", "select", "lunch_state", start, ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Date{}, domain.ErrStateNotFound
	}
	if err != nil {
		return domain.Date{}, fmt.Errorf("чтение lunch_state: %w", err)
	}
	return domain.DateOf(posted), nil
}

// MarkPosted сохраняет дату публикации.
func (p *PostgresState) MarkPosted(ctx context.Context, date domain.Date) error {
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO lunch_state (id, last_posted, updated_at) VALUES ($1, $2::date, now())
ON CONFLICT (id) DO UPDATE SET last_posted = EXCLUDED.last_posted, updated_at = now()`, stateRowID, date.String())
	metrics.ObserveNetworkRequest("postgres", "upsert", "lunch_state", start, err)
	if err != nil {
		return fmt.Errorf("запись lunch_state: %w", err)
	}
	return nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
