package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trend-launch/internal/domain"
)

const hostColumns = `id, name, handle, energy_score, clarity_score, authenticity_score, overall_score, tier,
commission_percent, total_shows, total_viewers, total_revenue_cents, total_earned_cents,
pending_payout_cents, avg_conversion_rate, created_at, updated_at`

func scanHost(row pgx.Row) (domain.Host, error) {
	var (
		h    domain.Host
		tier string
	)
	err := row.Scan(&h.ID, &h.Name, &h.Handle, &h.EnergyScore, &h.ClarityScore, &h.AuthenticityScore, &h.OverallScore, &tier,
		&h.CommissionPercent, &h.TotalShows, &h.TotalViewers, &h.TotalRevenueCents, &h.TotalEarnedCents,
		&h.PendingPayoutCents, &h.AvgConversionRate, &h.CreatedAt, &h.UpdatedAt)
	h.Tier = domain.HostTier(tier)
	return h, err
}

// CreateHost реализует domain.HostRepo.
func (p *Postgres) CreateHost(ctx context.Context, h domain.Host) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO hosts (`+hostColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		h.ID, h.Name, h.Handle, h.EnergyScore, h.ClarityScore, h.AuthenticityScore, h.OverallScore, string(h.Tier),
		h.CommissionPercent, h.TotalShows, h.TotalViewers, h.TotalRevenueCents, h.TotalEarnedCents,
		h.PendingPayoutCents, h.AvgConversionRate, h.CreatedAt, h.UpdatedAt)
	observe("hosts_insert", "hosts", start, err)
	if err != nil {
		return fmt.Errorf("insert host: %w", err)
	}
	return nil
}

// GetHost реализует domain.HostRepo.
func (p *Postgres) GetHost(ctx context.Context, id string) (domain.Host, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	h, err := scanHost(p.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = $1`, id))
	observe("hosts_get", "hosts", start, err)
	return h, notFound(err, "host %s", id)
}

// UpdateHost реализует domain.HostRepo.
func (p *Postgres) UpdateHost(ctx context.Context, h domain.Host) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	return updateHost(ctx, p.pool, h)
}

func updateHost(ctx context.Context, db execer, h domain.Host) error {
	start := time.Now()
	tag, err := db.Exec(ctx, `UPDATE hosts SET name = $2, handle = $3, energy_score = $4, clarity_score = $5,
    authenticity_score = $6, overall_score = $7, tier = $8, commission_percent = $9, total_shows = $10,
    total_viewers = $11, total_revenue_cents = $12, total_earned_cents = $13, pending_payout_cents = $14,
    avg_conversion_rate = $15, updated_at = $16
WHERE id = $1`,
		h.ID, h.Name, h.Handle, h.EnergyScore, h.ClarityScore, h.AuthenticityScore, h.OverallScore, string(h.Tier),
		h.CommissionPercent, h.TotalShows, h.TotalViewers, h.TotalRevenueCents, h.TotalEarnedCents,
		h.PendingPayoutCents, h.AvgConversionRate, h.UpdatedAt)
	observe("hosts_update", "hosts", start, err)
	if err != nil {
		return fmt.Errorf("update host: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("host %s", h.ID)
	}
	return nil
}

// ListHosts реализует domain.HostRepo.
func (p *Postgres) ListHosts(ctx context.Context) ([]domain.Host, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+hostColumns+` FROM hosts ORDER BY overall_score DESC, created_at`)
	observe("hosts_list", "hosts", start, err)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()
	var out []domain.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const handoffColumns = `id, launch_id, host_id, pre_live, during_live, post_live, host_confirmed, confirmed_at, created_at`

func scanHandoff(row pgx.Row) (domain.HostHandoffPack, error) {
	var (
		pack                  domain.HostHandoffPack
		pre, during, postLive []byte
	)
	if err := row.Scan(&pack.ID, &pack.LaunchID, &pack.HostID, &pre, &during, &postLive,
		&pack.HostConfirmed, &pack.ConfirmedAt, &pack.CreatedAt); err != nil {
		return domain.HostHandoffPack{}, err
	}
	for _, part := range []struct {
		raw []byte
		dst *[]string
	}{{pre, &pack.PreLive}, {during, &pack.DuringLive}, {postLive, &pack.PostLive}} {
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return domain.HostHandoffPack{}, fmt.Errorf("decode checklist: %w", err)
		}
	}
	return pack, nil
}

// CreateHandoffPack реализует domain.HostRepo.
func (p *Postgres) CreateHandoffPack(ctx context.Context, pack domain.HostHandoffPack) error {
	pre, _ := json.Marshal(append([]string{}, pack.PreLive...))
	during, _ := json.Marshal(append([]string{}, pack.DuringLive...))
	postLive, _ := json.Marshal(append([]string{}, pack.PostLive...))
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO host_handoff_packs (`+handoffColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pack.ID, pack.LaunchID, pack.HostID, pre, during, postLive, pack.HostConfirmed, pack.ConfirmedAt, pack.CreatedAt)
	observe("handoff_insert", "host_handoff_packs", start, err)
	if err != nil {
		return fmt.Errorf("insert handoff pack: %w", err)
	}
	return nil
}

// GetHandoffPack реализует domain.HostRepo.
func (p *Postgres) GetHandoffPack(ctx context.Context, id string) (domain.HostHandoffPack, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	pack, err := scanHandoff(p.pool.QueryRow(ctx, `SELECT `+handoffColumns+` FROM host_handoff_packs WHERE id = $1`, id))
	observe("handoff_get", "host_handoff_packs", start, err)
	return pack, notFound(err, "handoff pack %s", id)
}

// UpdateHandoffPack реализует domain.HostRepo. Чек-листы неизменяемы, обновляется только подтверждение.
func (p *Postgres) UpdateHandoffPack(ctx context.Context, pack domain.HostHandoffPack) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE host_handoff_packs SET host_confirmed = $2, confirmed_at = $3 WHERE id = $1`,
		pack.ID, pack.HostConfirmed, pack.ConfirmedAt)
	observe("handoff_update", "host_handoff_packs", start, err)
	if err != nil {
		return fmt.Errorf("update handoff pack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("handoff pack %s", pack.ID)
	}
	return nil
}

// ListHandoffPacks реализует domain.HostRepo.
func (p *Postgres) ListHandoffPacks(ctx context.Context, launchID string) ([]domain.HostHandoffPack, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+handoffColumns+` FROM host_handoff_packs WHERE launch_id = $1 ORDER BY created_at`, launchID)
	observe("handoff_list", "host_handoff_packs", start, err)
	if err != nil {
		return nil, fmt.Errorf("list handoff packs: %w", err)
	}
	defer rows.Close()
	var out []domain.HostHandoffPack
	for rows.Next() {
		pack, err := scanHandoff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan handoff pack: %w", err)
		}
		out = append(out, pack)
	}
	return out, rows.Err()
}

// RecordHostPerformance реализует domain.HostRepo. Эфир помечается учтённым не более одного раза.
func (p *Postgres) RecordHostPerformance(ctx context.Context, host domain.Host, show domain.LiveShow) error {
	return p.inTx(ctx, "host_performance", func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE live_shows SET performance_recorded_at = $2
WHERE id = $1 AND performance_recorded_at IS NULL`, show.ID, show.PerformanceRecordedAt)
		if err != nil {
			return fmt.Errorf("mark show recorded: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM live_shows WHERE id = $1)`, show.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check show: %w", err)
			}
			if !exists {
				return domain.NotFoundf("live show %s", show.ID)
			}
			return domain.ErrConcurrencyConflict
		}
		return updateHost(ctx, tx, host)
	})
}
