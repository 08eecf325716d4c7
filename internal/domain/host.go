package domain

import "time"

// HostTier — уровень ведущего.
type HostTier string

const (
	HostTierPlatinum  HostTier = "PLATINUM"
	HostTierGold      HostTier = "GOLD"
	HostTierSilver    HostTier = "SILVER"
	HostTierBronze    HostTier = "BRONZE"
	HostTierApplicant HostTier = "APPLICANT"
)

// TierForScore сопоставляет итоговую оценку уровню. Пороги проверяются по убыванию.
func TierForScore(score int) HostTier {
	switch {
	case score >= 90:
		return HostTierPlatinum
	case score >= 80:
		return HostTierGold
	case score >= 70:
		return HostTierSilver
	case score >= 60:
		return HostTierBronze
	default:
		return HostTierApplicant
	}
}

// Host — профиль ведущего с накопительными показателями.
type Host struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Handle             string    `json:"handle,omitempty"`
	EnergyScore        int       `json:"energy_score"`
	ClarityScore       int       `json:"clarity_score"`
	AuthenticityScore  int       `json:"authenticity_score"`
	OverallScore       int       `json:"overall_score"`
	Tier               HostTier  `json:"tier"`
	CommissionPercent  float64   `json:"commission_percent"`
	TotalShows         int       `json:"total_shows"`
	TotalViewers       int64     `json:"total_viewers"`
	TotalRevenueCents  int64     `json:"total_revenue_cents"`
	TotalEarnedCents   int64     `json:"total_earned_cents"`
	PendingPayoutCents int64     `json:"pending_payout_cents"`
	AvgConversionRate  float64   `json:"avg_conversion_rate"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HostProfile — параметры регистрации ведущего.
type HostProfile struct {
	Name              string  `json:"name"`
	Handle            string  `json:"handle,omitempty"`
	CommissionPercent float64 `json:"commission_percent"`
}

// HostHandoffPack — чек-листы передачи запуска ведущему.
type HostHandoffPack struct {
	ID            string     `json:"id"`
	LaunchID      string     `json:"launch_id"`
	HostID        string     `json:"host_id"`
	PreLive       []string   `json:"pre_live"`
	DuringLive    []string   `json:"during_live"`
	PostLive      []string   `json:"post_live"`
	HostConfirmed bool       `json:"host_confirmed"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
