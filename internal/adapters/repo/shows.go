package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trend-launch/internal/domain"
)

const showColumns = `id, launch_id, asset_pack_id, host_id, platform, run_of_show, status, current_viewers,
peak_viewers, likes, purchases, revenue_cents, room_id, recording_url, created_at, started_at, ended_at,
performance_recorded_at`

func scanShow(row pgx.Row) (domain.LiveShow, error) {
	var (
		s      domain.LiveShow
		run    []byte
		status string
	)
	if err := row.Scan(&s.ID, &s.LaunchID, &s.AssetPackID, &s.HostID, &s.Platform, &run, &status, &s.CurrentViewers,
		&s.PeakViewers, &s.Likes, &s.Purchases, &s.RevenueCents, &s.RoomID, &s.RecordingURL, &s.CreatedAt,
		&s.StartedAt, &s.EndedAt, &s.PerformanceRecordedAt); err != nil {
		return domain.LiveShow{}, err
	}
	s.Status = domain.LiveShowStatus(status)
	if err := json.Unmarshal(run, &s.RunOfShow); err != nil {
		return domain.LiveShow{}, fmt.Errorf("decode run of show: %w", err)
	}
	return s, nil
}

// CreateLiveShow реализует domain.LiveShowRepo.
func (p *Postgres) CreateLiveShow(ctx context.Context, s domain.LiveShow) error {
	run, err := json.Marshal(append([]domain.RunOfShowSegment{}, s.RunOfShow...))
	if err != nil {
		return fmt.Errorf("marshal run of show: %w", err)
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err = p.pool.Exec(ctx, `INSERT INTO live_shows (`+showColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		s.ID, s.LaunchID, s.AssetPackID, s.HostID, s.Platform, run, string(s.Status), s.CurrentViewers,
		s.PeakViewers, s.Likes, s.Purchases, s.RevenueCents, s.RoomID, s.RecordingURL, s.CreatedAt,
		s.StartedAt, s.EndedAt, s.PerformanceRecordedAt)
	observe("live_shows_insert", "live_shows", start, err)
	if err != nil {
		return fmt.Errorf("insert live show: %w", err)
	}
	return nil
}

// GetLiveShow реализует domain.LiveShowRepo.
func (p *Postgres) GetLiveShow(ctx context.Context, id string) (domain.LiveShow, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	s, err := scanShow(p.pool.QueryRow(ctx, `SELECT `+showColumns+` FROM live_shows WHERE id = $1`, id))
	observe("live_shows_get", "live_shows", start, err)
	return s, notFound(err, "live show %s", id)
}

// UpdateLiveShow реализует domain.LiveShowRepo. Отметка об учёте у ведущего меняется только через RecordHostPerformance.
func (p *Postgres) UpdateLiveShow(ctx context.Context, s domain.LiveShow) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE live_shows SET host_id = $2, status = $3, current_viewers = $4,
    peak_viewers = $5, likes = $6, purchases = $7, revenue_cents = $8, room_id = $9, recording_url = $10,
    started_at = $11, ended_at = $12
WHERE id = $1`,
		s.ID, s.HostID, string(s.Status), s.CurrentViewers, s.PeakViewers, s.Likes, s.Purchases, s.RevenueCents,
		s.RoomID, s.RecordingURL, s.StartedAt, s.EndedAt)
	observe("live_shows_update", "live_shows", start, err)
	if err != nil {
		return fmt.Errorf("update live show: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("live show %s", s.ID)
	}
	return nil
}

// ListLiveShows реализует domain.LiveShowRepo.
func (p *Postgres) ListLiveShows(ctx context.Context, filter domain.LiveShowFilter) ([]domain.LiveShow, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+showColumns+` FROM live_shows
WHERE ($1 = '' OR launch_id::text = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at`, filter.LaunchID, string(filter.Status))
	observe("live_shows_list", "live_shows", start, err)
	if err != nil {
		return nil, fmt.Errorf("list live shows: %w", err)
	}
	defer rows.Close()
	var out []domain.LiveShow
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan live show: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddTimestamp реализует domain.LiveShowRepo.
func (p *Postgres) AddTimestamp(ctx context.Context, ts domain.LiveShowTimestamp) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO live_show_timestamps (id, show_id, offset_seconds, label, clip_type, highlight, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, ts.ID, ts.ShowID, ts.OffsetSeconds, ts.Label, string(ts.ClipType), ts.Highlight, ts.CreatedAt)
	observe("timestamps_insert", "live_show_timestamps", start, err)
	if err != nil {
		return fmt.Errorf("insert timestamp: %w", err)
	}
	return nil
}

// ListTimestamps реализует domain.LiveShowRepo.
func (p *Postgres) ListTimestamps(ctx context.Context, showID string) ([]domain.LiveShowTimestamp, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, show_id, offset_seconds, label, clip_type, highlight, created_at
FROM live_show_timestamps WHERE show_id = $1 ORDER BY offset_seconds, created_at`, showID)
	observe("timestamps_list", "live_show_timestamps", start, err)
	if err != nil {
		return nil, fmt.Errorf("list timestamps: %w", err)
	}
	defer rows.Close()
	var out []domain.LiveShowTimestamp
	for rows.Next() {
		var (
			ts       domain.LiveShowTimestamp
			clipType string
		)
		if err := rows.Scan(&ts.ID, &ts.ShowID, &ts.OffsetSeconds, &ts.Label, &clipType, &ts.Highlight, &ts.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		ts.ClipType = domain.Segment(clipType)
		out = append(out, ts)
	}
	return out, rows.Err()
}

// ReplaceClips реализует domain.LiveShowRepo: старый план клипов удаляется в той же транзакции.
func (p *Postgres) ReplaceClips(ctx context.Context, showID string, clips []domain.PostLiveClip) error {
	return p.inTx(ctx, "clips_replace", func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM post_live_clips WHERE show_id = $1`, showID); err != nil {
			return fmt.Errorf("delete clips: %w", err)
		}
		batch := &pgx.Batch{}
		for _, c := range clips {
			batch.Queue(`INSERT INTO post_live_clips (id, show_id, clip_type, start_offset_seconds, end_offset_seconds, source_url, scheduled_for, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, c.ID, showID, string(c.ClipType), c.StartOffsetSeconds, c.EndOffsetSeconds,
				c.SourceURL, c.ScheduledFor, c.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert clips: %w", err)
		}
		return nil
	})
}

// ListClips реализует domain.LiveShowRepo.
func (p *Postgres) ListClips(ctx context.Context, showID string) ([]domain.PostLiveClip, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, show_id, clip_type, start_offset_seconds, end_offset_seconds, source_url, scheduled_for, created_at
FROM post_live_clips WHERE show_id = $1 ORDER BY scheduled_for`, showID)
	observe("clips_list", "post_live_clips", start, err)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()
	var out []domain.PostLiveClip
	for rows.Next() {
		var (
			c        domain.PostLiveClip
			clipType string
		)
		if err := rows.Scan(&c.ID, &c.ShowID, &clipType, &c.StartOffsetSeconds, &c.EndOffsetSeconds, &c.SourceURL, &c.ScheduledFor, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		c.ClipType = domain.Segment(clipType)
		out = append(out, c)
	}
	return out, rows.Err()
}

const profitColumns = `id, launch_id, shows_count, units_sold, gross_revenue_cents, product_cost_cents,
shipping_cost_cents, platform_fee_cents, payment_fee_cents, host_commission_cents, marketing_cost_cents,
refunds_cents, total_cost_cents, net_profit_cents, margin_percent, break_even_units, below_threshold,
alert_at, calculated_at`

// AppendProfit реализует domain.ProfitRepo.
func (p *Postgres) AppendProfit(ctx context.Context, r domain.ProfitTracking) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO profit_tracking (`+profitColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		r.ID, r.LaunchID, r.ShowsCount, r.UnitsSold, r.GrossRevenueCents, r.ProductCostCents,
		r.ShippingCostCents, r.PlatformFeeCents, r.PaymentFeeCents, r.HostCommissionCents, r.MarketingCostCents,
		r.RefundsCents, r.TotalCostCents, r.NetProfitCents, r.MarginPercent, r.BreakEvenUnits, r.BelowThreshold,
		r.AlertAt, r.CalculatedAt)
	observe("profit_insert", "profit_tracking", start, err)
	if err != nil {
		return fmt.Errorf("insert profit: %w", err)
	}
	return nil
}

// ListProfit реализует domain.ProfitRepo.
func (p *Postgres) ListProfit(ctx context.Context, launchID string) ([]domain.ProfitTracking, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+profitColumns+` FROM profit_tracking WHERE launch_id = $1 ORDER BY calculated_at`, launchID)
	observe("profit_list", "profit_tracking", start, err)
	if err != nil {
		return nil, fmt.Errorf("list profit: %w", err)
	}
	defer rows.Close()
	var out []domain.ProfitTracking
	for rows.Next() {
		var r domain.ProfitTracking
		if err := rows.Scan(&r.ID, &r.LaunchID, &r.ShowsCount, &r.UnitsSold, &r.GrossRevenueCents, &r.ProductCostCents,
			&r.ShippingCostCents, &r.PlatformFeeCents, &r.PaymentFeeCents, &r.HostCommissionCents, &r.MarketingCostCents,
			&r.RefundsCents, &r.TotalCostCents, &r.NetProfitCents, &r.MarginPercent, &r.BreakEvenUnits, &r.BelowThreshold,
			&r.AlertAt, &r.CalculatedAt); err != nil {
			return nil, fmt.Errorf("scan profit: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
