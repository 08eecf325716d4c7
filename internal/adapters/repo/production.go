package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trend-launch/internal/domain"
)

const packColumns = `id, launch_id, platform, scripts, playbook, disclosure, compliance_approved, status, version, created_at, updated_at`

func scanPack(row pgx.Row) (domain.AssetPack, error) {
	var (
		pack              domain.AssetPack
		scripts, playbook []byte
		status            string
	)
	if err := row.Scan(&pack.ID, &pack.LaunchID, &pack.Platform, &scripts, &playbook, &pack.Disclosure,
		&pack.ComplianceApproved, &status, &pack.Version, &pack.CreatedAt, &pack.UpdatedAt); err != nil {
		return domain.AssetPack{}, err
	}
	pack.Status = domain.AssetPackStatus(status)
	if err := json.Unmarshal(scripts, &pack.Scripts); err != nil {
		return domain.AssetPack{}, fmt.Errorf("decode scripts: %w", err)
	}
	if err := json.Unmarshal(playbook, &pack.Playbook); err != nil {
		return domain.AssetPack{}, fmt.Errorf("decode playbook: %w", err)
	}
	return pack, nil
}

// SaveAssetPack реализует domain.AssetPackRepo. Повторное сохранение по (launch, platform) поднимает версию.
func (p *Postgres) SaveAssetPack(ctx context.Context, pack domain.AssetPack) (domain.AssetPack, error) {
	scripts, err := json.Marshal(pack.Scripts)
	if err != nil {
		return domain.AssetPack{}, fmt.Errorf("marshal scripts: %w", err)
	}
	playbook, err := json.Marshal(pack.Playbook)
	if err != nil {
		return domain.AssetPack{}, fmt.Errorf("marshal playbook: %w", err)
	}
	if pack.Version == 0 {
		pack.Version = 1
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	saved, err := scanPack(p.pool.QueryRow(ctx, `INSERT INTO asset_packs (`+packColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (launch_id, platform) DO UPDATE SET
    scripts = EXCLUDED.scripts,
    playbook = EXCLUDED.playbook,
    disclosure = EXCLUDED.disclosure,
    compliance_approved = EXCLUDED.compliance_approved,
    status = EXCLUDED.status,
    version = asset_packs.version + 1,
    updated_at = EXCLUDED.updated_at
RETURNING `+packColumns,
		pack.ID, pack.LaunchID, pack.Platform, scripts, playbook, pack.Disclosure,
		pack.ComplianceApproved, string(pack.Status), pack.Version, pack.CreatedAt, pack.UpdatedAt))
	observe("asset_packs_upsert", "asset_packs", start, err)
	if err != nil {
		return domain.AssetPack{}, fmt.Errorf("save asset pack: %w", err)
	}
	return saved, nil
}

// GetAssetPack реализует domain.AssetPackRepo.
func (p *Postgres) GetAssetPack(ctx context.Context, id string) (domain.AssetPack, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	pack, err := scanPack(p.pool.QueryRow(ctx, `SELECT `+packColumns+` FROM asset_packs WHERE id = $1`, id))
	observe("asset_packs_get", "asset_packs", start, err)
	return pack, notFound(err, "asset pack %s", id)
}

// ListAssetPacks реализует domain.AssetPackRepo.
func (p *Postgres) ListAssetPacks(ctx context.Context, launchID string) ([]domain.AssetPack, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+packColumns+` FROM asset_packs WHERE launch_id = $1 ORDER BY platform`, launchID)
	observe("asset_packs_list", "asset_packs", start, err)
	if err != nil {
		return nil, fmt.Errorf("list asset packs: %w", err)
	}
	defer rows.Close()
	var out []domain.AssetPack
	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset pack: %w", err)
		}
		out = append(out, pack)
	}
	return out, rows.Err()
}

const streamColumns = `id, launch_id, asset_pack_id, duration_minutes, status, verdict, verdict_reason, room_id, created_at, started_at, ended_at`

func scanStream(row pgx.Row) (domain.TestStream, error) {
	var (
		s               domain.TestStream
		status, verdict string
	)
	err := row.Scan(&s.ID, &s.LaunchID, &s.AssetPackID, &s.DurationMinutes, &status, &verdict, &s.VerdictReason,
		&s.RoomID, &s.CreatedAt, &s.StartedAt, &s.EndedAt)
	s.Status = domain.TestStreamStatus(status)
	s.Verdict = domain.Verdict(verdict)
	return s, err
}

// CreateTestStream реализует domain.TestStreamRepo.
func (p *Postgres) CreateTestStream(ctx context.Context, s domain.TestStream) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO test_streams (`+streamColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.LaunchID, s.AssetPackID, s.DurationMinutes, string(s.Status), string(s.Verdict), s.VerdictReason,
		s.RoomID, s.CreatedAt, s.StartedAt, s.EndedAt)
	observe("test_streams_insert", "test_streams", start, err)
	if err != nil {
		return fmt.Errorf("insert test stream: %w", err)
	}
	return nil
}

// GetTestStream реализует domain.TestStreamRepo.
func (p *Postgres) GetTestStream(ctx context.Context, id string) (domain.TestStream, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	s, err := scanStream(p.pool.QueryRow(ctx, `SELECT `+streamColumns+` FROM test_streams WHERE id = $1`, id))
	observe("test_streams_get", "test_streams", start, err)
	return s, notFound(err, "test stream %s", id)
}

// UpdateTestStream реализует domain.TestStreamRepo.
func (p *Postgres) UpdateTestStream(ctx context.Context, s domain.TestStream) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE test_streams SET status = $2, verdict = $3, verdict_reason = $4,
    room_id = $5, started_at = $6, ended_at = $7
WHERE id = $1`, s.ID, string(s.Status), string(s.Verdict), s.VerdictReason, s.RoomID, s.StartedAt, s.EndedAt)
	observe("test_streams_update", "test_streams", start, err)
	if err != nil {
		return fmt.Errorf("update test stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("test stream %s", s.ID)
	}
	return nil
}

// ListTestStreams реализует domain.TestStreamRepo.
func (p *Postgres) ListTestStreams(ctx context.Context, launchID string) ([]domain.TestStream, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+streamColumns+` FROM test_streams WHERE launch_id = $1 ORDER BY created_at`, launchID)
	observe("test_streams_list", "test_streams", start, err)
	if err != nil {
		return nil, fmt.Errorf("list test streams: %w", err)
	}
	defer rows.Close()
	var out []domain.TestStream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test stream: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const readinessColumns = `launch_id, test_streams_pass, test_streams_expired, assets_complete, host_handoff_confirmed,
inventory_available, payment_gateway_healthy, platform_account_active, compliance_approved,
overall_readiness, is_ready, risk_level, risk_factors, guard_status, last_go_verdict_at,
manual_override, override_by, override_reason, override_at, checked_at`

// UpsertReadiness реализует domain.ReadinessRepo.
func (p *Postgres) UpsertReadiness(ctx context.Context, r domain.GoLiveReadiness) error {
	factors, err := json.Marshal(append([]string{}, r.RiskFactors...))
	if err != nil {
		return fmt.Errorf("marshal risk factors: %w", err)
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err = p.pool.Exec(ctx, `INSERT INTO go_live_readiness (`+readinessColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT (launch_id) DO UPDATE SET
    test_streams_pass = EXCLUDED.test_streams_pass,
    test_streams_expired = EXCLUDED.test_streams_expired,
    assets_complete = EXCLUDED.assets_complete,
    host_handoff_confirmed = EXCLUDED.host_handoff_confirmed,
    inventory_available = EXCLUDED.inventory_available,
    payment_gateway_healthy = EXCLUDED.payment_gateway_healthy,
    platform_account_active = EXCLUDED.platform_account_active,
    compliance_approved = EXCLUDED.compliance_approved,
    overall_readiness = EXCLUDED.overall_readiness,
    is_ready = EXCLUDED.is_ready,
    risk_level = EXCLUDED.risk_level,
    risk_factors = EXCLUDED.risk_factors,
    guard_status = EXCLUDED.guard_status,
    last_go_verdict_at = EXCLUDED.last_go_verdict_at,
    manual_override = EXCLUDED.manual_override,
    override_by = EXCLUDED.override_by,
    override_reason = EXCLUDED.override_reason,
    override_at = EXCLUDED.override_at,
    checked_at = EXCLUDED.checked_at`,
		r.LaunchID, r.TestStreamsPass, r.TestStreamsExpired, r.AssetsComplete, r.HostHandoffConfirmed,
		r.InventoryAvailable, r.PaymentGatewayHealthy, r.PlatformAccountActive, r.ComplianceApproved,
		r.OverallReadiness, r.IsReady, string(r.RiskLevel), factors, string(r.GuardStatus), r.LastGoVerdictAt,
		r.ManualOverride, r.OverrideBy, r.OverrideReason, r.OverrideAt, r.CheckedAt)
	observe("readiness_upsert", "go_live_readiness", start, err)
	if err != nil {
		return fmt.Errorf("upsert readiness: %w", err)
	}
	return nil
}

// GetReadiness реализует domain.ReadinessRepo.
func (p *Postgres) GetReadiness(ctx context.Context, launchID string) (domain.GoLiveReadiness, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	var (
		r                 domain.GoLiveReadiness
		risk, guard       string
		factors           []byte
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT `+readinessColumns+` FROM go_live_readiness WHERE launch_id = $1`, launchID).Scan(
		&r.LaunchID, &r.TestStreamsPass, &r.TestStreamsExpired, &r.AssetsComplete, &r.HostHandoffConfirmed,
		&r.InventoryAvailable, &r.PaymentGatewayHealthy, &r.PlatformAccountActive, &r.ComplianceApproved,
		&r.OverallReadiness, &r.IsReady, &risk, &factors, &guard, &r.LastGoVerdictAt,
		&r.ManualOverride, &r.OverrideBy, &r.OverrideReason, &r.OverrideAt, &r.CheckedAt)
	observe("readiness_get", "go_live_readiness", start, err)
	if err != nil {
		return domain.GoLiveReadiness{}, notFound(err, "readiness for launch %s", launchID)
	}
	r.RiskLevel = domain.RiskLevel(risk)
	r.GuardStatus = domain.GuardStatus(guard)
	if err := json.Unmarshal(factors, &r.RiskFactors); err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("decode risk factors: %w", err)
	}
	return r, nil
}
