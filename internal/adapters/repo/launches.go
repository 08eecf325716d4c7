package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trend-launch/internal/domain"
)

const launchColumns = `id, name, product, launch_date, end_date, status, host_id, cancel_reason, created_at, updated_at`

func scanLaunch(row pgx.Row) (domain.Launch, error) {
	var (
		l       domain.Launch
		product []byte
		status  string
	)
	if err := row.Scan(&l.ID, &l.Name, &product, &l.LaunchDate, &l.EndDate, &status, &l.HostID, &l.CancelReason, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return domain.Launch{}, err
	}
	l.Status = domain.LaunchStatus(status)
	if err := json.Unmarshal(product, &l.Product); err != nil {
		return domain.Launch{}, fmt.Errorf("decode product snapshot: %w", err)
	}
	return l, nil
}

// CreateLaunch реализует domain.LaunchRepo: запуск и статус исходного тренда пишутся одной транзакцией.
func (p *Postgres) CreateLaunch(ctx context.Context, launch domain.Launch, source domain.TrendProduct) error {
	product, err := json.Marshal(launch.Product)
	if err != nil {
		return fmt.Errorf("marshal product snapshot: %w", err)
	}
	return p.inTx(ctx, "launch_create", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO launches (`+launchColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			launch.ID, launch.Name, product, launch.LaunchDate, launch.EndDate, string(launch.Status),
			launch.HostID, launch.CancelReason, launch.CreatedAt, launch.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert launch: %w", err)
		}
		start := time.Now()
		tag, err := tx.Exec(ctx, `UPDATE trend_products SET status = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ($4, $5, $6)`,
			source.ID, string(domain.TrendStatusLaunched), source.UpdatedAt,
			string(domain.TrendStatusLaunched), string(domain.TrendStatusRejected), string(domain.TrendStatusArchived))
		observe("trends_launch", "trend_products", start, err)
		if err != nil {
			return fmt.Errorf("mark trend launched: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: trend %s is missing or no longer launchable", domain.ErrConcurrencyConflict, source.ID)
		}
		return nil
	})
}

// GetLaunch реализует domain.LaunchRepo.
func (p *Postgres) GetLaunch(ctx context.Context, id string) (domain.Launch, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	launch, err := scanLaunch(p.pool.QueryRow(ctx, `SELECT `+launchColumns+` FROM launches WHERE id = $1`, id))
	observe("launches_get", "launches", start, err)
	return launch, notFound(err, "launch %s", id)
}

// ListLaunches реализует domain.LaunchRepo.
func (p *Postgres) ListLaunches(ctx context.Context, filter domain.LaunchFilter) ([]domain.Launch, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+launchColumns+` FROM launches
WHERE ($1 = '' OR status = $1)
ORDER BY launch_date
LIMIT $2`, string(filter.Status), limit)
	observe("launches_list", "launches", start, err)
	if err != nil {
		return nil, fmt.Errorf("list launches: %w", err)
	}
	defer rows.Close()
	var out []domain.Launch
	for rows.Next() {
		launch, err := scanLaunch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		out = append(out, launch)
	}
	return out, rows.Err()
}

// UpdateLaunchStatus реализует domain.LaunchRepo условным UPDATE по текущему статусу.
func (p *Postgres) UpdateLaunchStatus(ctx context.Context, id string, from, to domain.LaunchStatus, reason string, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE launches SET status = $3, updated_at = $4,
    cancel_reason = CASE WHEN $3 = 'CANCELLED' THEN $5 ELSE cancel_reason END
WHERE id = $1 AND status = $2`, id, string(from), string(to), at, reason)
	observe("launches_update_status", "launches", start, err)
	if err != nil {
		return fmt.Errorf("update launch status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := p.GetLaunch(ctx, id); err != nil {
		return err
	}
	return domain.ErrConcurrencyConflict
}

// SetLaunchHost реализует domain.LaunchRepo.
func (p *Postgres) SetLaunchHost(ctx context.Context, id, hostID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE launches SET host_id = $2 WHERE id = $1`, id, hostID)
	observe("launches_set_host", "launches", start, err)
	if err != nil {
		return fmt.Errorf("set launch host: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("launch %s", id)
	}
	return nil
}
