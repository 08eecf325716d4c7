package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trend-launch/internal/domain"
)

const trendColumns = `id, source, source_url, name, category, views, likes, comments, shares,
source_cost_cents, suggested_price_cents, engagement_rate, virality_score, profit_score,
availability_score, competition_score, overall_score, shipping_cost_cents, profit_margin_cents,
margin_percent, status, rank, reject_reason, discovered_at, updated_at, archived_at`

func trendArgs(t domain.TrendProduct) []any {
	return []any{t.ID, t.Source, t.SourceURL, t.Name, t.Category, t.Views, t.Likes, t.Comments, t.Shares,
		t.SourceCostCents, t.SuggestedPriceCents, t.EngagementRate, t.ViralityScore, t.ProfitScore,
		t.AvailabilityScore, t.CompetitionScore, t.OverallScore, t.ShippingCostCents, t.ProfitMarginCents,
		t.MarginPercent, string(t.Status), t.Rank, t.RejectReason, t.DiscoveredAt, t.UpdatedAt, t.ArchivedAt}
}

func scanTrend(row pgx.Row) (domain.TrendProduct, error) {
	var (
		t      domain.TrendProduct
		status string
	)
	err := row.Scan(&t.ID, &t.Source, &t.SourceURL, &t.Name, &t.Category, &t.Views, &t.Likes, &t.Comments, &t.Shares,
		&t.SourceCostCents, &t.SuggestedPriceCents, &t.EngagementRate, &t.ViralityScore, &t.ProfitScore,
		&t.AvailabilityScore, &t.CompetitionScore, &t.OverallScore, &t.ShippingCostCents, &t.ProfitMarginCents,
		&t.MarginPercent, &status, &t.Rank, &t.RejectReason, &t.DiscoveredAt, &t.UpdatedAt, &t.ArchivedAt)
	t.Status = domain.TrendStatus(status)
	return t, err
}

// CreateTrend реализует domain.TrendRepo. Повтор source_url даёт ErrConcurrencyConflict.
func (p *Postgres) CreateTrend(ctx context.Context, trend domain.TrendProduct) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO trend_products (`+trendColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`, trendArgs(trend)...)
	observe("trends_insert", "trend_products", start, err)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: trend %s already exists", domain.ErrConcurrencyConflict, trend.SourceURL)
	}
	return err
}

// GetTrend реализует domain.TrendRepo.
func (p *Postgres) GetTrend(ctx context.Context, id string) (domain.TrendProduct, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	trend, err := scanTrend(p.pool.QueryRow(ctx, `SELECT `+trendColumns+` FROM trend_products WHERE id = $1`, id))
	observe("trends_get", "trend_products", start, err)
	return trend, notFound(err, "trend %s", id)
}

// GetTrendByURL реализует domain.TrendRepo.
func (p *Postgres) GetTrendByURL(ctx context.Context, sourceURL string) (domain.TrendProduct, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	trend, err := scanTrend(p.pool.QueryRow(ctx, `SELECT `+trendColumns+` FROM trend_products WHERE source_url = $1`, sourceURL))
	observe("trends_get_by_url", "trend_products", start, err)
	return trend, notFound(err, "trend with url %s", sourceURL)
}

// UpdateTrend реализует domain.TrendRepo.
func (p *Postgres) UpdateTrend(ctx context.Context, trend domain.TrendProduct) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	return updateTrend(ctx, p.pool, trend, "")
}

// UpdateTrendIfStatus реализует domain.TrendRepo.
func (p *Postgres) UpdateTrendIfStatus(ctx context.Context, trend domain.TrendProduct, status domain.TrendStatus) error {
	if status == "" {
		return domain.Validationf("required status is empty")
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	return updateTrend(ctx, p.pool, trend, status)
}

// updateTrend перезаписывает изменяемые поля. Непустой requireStatus превращает запрос в CAS по статусу.
func updateTrend(ctx context.Context, db execer, t domain.TrendProduct, requireStatus domain.TrendStatus) error {
	start := time.Now()
	tag, err := db.Exec(ctx, `UPDATE trend_products SET
    views = $2, likes = $3, comments = $4, shares = $5, source_cost_cents = $6, suggested_price_cents = $7,
    engagement_rate = $8, virality_score = $9, profit_score = $10, availability_score = $11,
    competition_score = $12, overall_score = $13, shipping_cost_cents = $14, profit_margin_cents = $15,
    margin_percent = $16, status = $17, rank = $18, reject_reason = $19, updated_at = $20, archived_at = $21
WHERE id = $1 AND ($22 = '' OR status = $22)`,
		t.ID, t.Views, t.Likes, t.Comments, t.Shares, t.SourceCostCents, t.SuggestedPriceCents,
		t.EngagementRate, t.ViralityScore, t.ProfitScore, t.AvailabilityScore,
		t.CompetitionScore, t.OverallScore, t.ShippingCostCents, t.ProfitMarginCents,
		t.MarginPercent, string(t.Status), t.Rank, t.RejectReason, t.UpdatedAt, t.ArchivedAt, string(requireStatus))
	observe("trends_update", "trend_products", start, err)
	if err != nil {
		return fmt.Errorf("update trend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if requireStatus != "" {
			return fmt.Errorf("%w: trend %s is no longer %s", domain.ErrConcurrencyConflict, t.ID, requireStatus)
		}
		return domain.NotFoundf("trend %s", t.ID)
	}
	return nil
}

// ListTrends реализует domain.TrendRepo.
func (p *Postgres) ListTrends(ctx context.Context, filter domain.TrendFilter) ([]domain.TrendProduct, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+trendColumns+` FROM trend_products
WHERE ($1 = '' OR status = $1) AND overall_score >= $2
ORDER BY overall_score DESC, discovered_at
LIMIT $3`, string(filter.Status), filter.MinScore, limit)
	observe("trends_list", "trend_products", start, err)
	if err != nil {
		return nil, fmt.Errorf("list trends: %w", err)
	}
	defer rows.Close()
	var out []domain.TrendProduct
	for rows.Next() {
		trend, err := scanTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		out = append(out, trend)
	}
	return out, rows.Err()
}

// CommitShortlist реализует domain.ShortlistRepo. Тренд, ушедший из ANALYZING, откатывает весь снимок.
func (p *Postgres) CommitShortlist(ctx context.Context, shortlist domain.DailyShortlist, promoted []domain.TrendProduct) error {
	entries, err := json.Marshal(shortlist.Entries)
	if err != nil {
		return fmt.Errorf("marshal shortlist: %w", err)
	}
	return p.inTx(ctx, "shortlist_commit", func(ctx context.Context, tx pgx.Tx) error {
		for _, trend := range promoted {
			if err := promoteTrend(ctx, tx, trend); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO daily_shortlists (id, date, min_score, entries, created_at)
VALUES ($1, $2, $3, $4, $5)`, shortlist.ID, shortlist.Date, shortlist.MinScore, entries, shortlist.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert shortlist: %w", err)
		}
		return nil
	})
}

// promoteTrend меняет только статус, ранг и время обновления, не трогая оценки.
func promoteTrend(ctx context.Context, db execer, t domain.TrendProduct) error {
	start := time.Now()
	tag, err := db.Exec(ctx, `UPDATE trend_products SET status = $2, rank = $3, updated_at = $4
WHERE id = $1 AND status = $5`,
		t.ID, string(domain.TrendStatusShortlisted), t.Rank, t.UpdatedAt, string(domain.TrendStatusAnalyzing))
	observe("trends_promote", "trend_products", start, err)
	if err != nil {
		return fmt.Errorf("promote trend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: trend %s is no longer %s", domain.ErrConcurrencyConflict, t.ID, domain.TrendStatusAnalyzing)
	}
	return nil
}

// LatestShortlist реализует domain.ShortlistRepo.
func (p *Postgres) LatestShortlist(ctx context.Context) (domain.DailyShortlist, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	var (
		s       domain.DailyShortlist
		entries []byte
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, date, min_score, entries, created_at FROM daily_shortlists
ORDER BY created_at DESC LIMIT 1`).Scan(&s.ID, &s.Date, &s.MinScore, &entries, &s.CreatedAt)
	observe("shortlists_latest", "daily_shortlists", start, err)
	if err != nil {
		return domain.DailyShortlist{}, notFound(err, "shortlist")
	}
	if err := json.Unmarshal(entries, &s.Entries); err != nil {
		return domain.DailyShortlist{}, fmt.Errorf("decode shortlist entries: %w", err)
	}
	return s, nil
}
