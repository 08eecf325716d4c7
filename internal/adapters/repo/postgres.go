package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

// Postgres реализует репозитории конвейера на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.TrendRepo      = (*Postgres)(nil)
	_ domain.ShortlistRepo  = (*Postgres)(nil)
	_ domain.LaunchRepo     = (*Postgres)(nil)
	_ domain.AssetPackRepo  = (*Postgres)(nil)
	_ domain.TestStreamRepo = (*Postgres)(nil)
	_ domain.ReadinessRepo  = (*Postgres)(nil)
	_ domain.HostRepo       = (*Postgres)(nil)
	_ domain.LiveShowRepo   = (*Postgres)(nil)
	_ domain.ProfitRepo     = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// execer — общее подмножество пула и транзакции.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// observe пишет метрику запроса. Отсутствие строк ошибкой БД не считается.
func observe(op, table string, start time.Time, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	metrics.ObserveNetworkRequest("postgres", op, table, start, err)
}

// notFound превращает pgx.ErrNoRows в domain.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf(format, args...)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// inTx выполняет fn в транзакции и откатывает её при ошибке.
func (p *Postgres) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		observe(op, "tx", start, err)
		return fmt.Errorf("begin %s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(ctx, tx); err != nil {
		observe(op, "tx", start, err)
		return err
	}
	err = tx.Commit(ctx)
	observe(op, "tx", start, err)
	if err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}
