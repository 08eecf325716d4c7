package domain

import (
	"strings"
	"time"
)

// ReadinessCheckCount — число независимых проверок готовности.
const ReadinessCheckCount = 7

// RiskLevel — уровень риска выхода в эфир.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskSeverity = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

// Escalate возвращает более серьёзный из двух уровней.
func (r RiskLevel) Escalate(to RiskLevel) RiskLevel {
	if riskSeverity[to] > riskSeverity[r] {
		return to
	}
	return r
}

// GuardStatus — состояние предохранителя выхода в эфир.
type GuardStatus string

const (
	GuardPending    GuardStatus = "PENDING"
	GuardArmed      GuardStatus = "ARMED"
	GuardOverridden GuardStatus = "OVERRIDDEN"
)

// HealthSignals — внешние сигналы здоровья, всегда обязательные.
type HealthSignals struct {
	InventoryAvailable    bool `json:"inventory_available"`
	PaymentGatewayHealthy bool `json:"payment_gateway_healthy"`
	PlatformAccountActive bool `json:"platform_account_active"`
}

// ReadinessChecks — семь независимых проверок.
type ReadinessChecks struct {
	TestStreamsPass      bool `json:"test_streams_pass"`
	TestStreamsExpired   bool `json:"test_streams_expired"`
	AssetsComplete       bool `json:"assets_complete"`
	HostHandoffConfirmed bool `json:"host_handoff_confirmed"`
	HealthSignals
}

// Passed возвращает число пройденных проверок. Протухшая репетиция считается непройденной.
func (c ReadinessChecks) Passed() int {
	passed := 0
	for _, ok := range []bool{
		c.TestStreamsPass,
		!c.TestStreamsExpired,
		c.AssetsComplete,
		c.HostHandoffConfirmed,
		c.InventoryAvailable,
		c.PaymentGatewayHealthy,
		c.PlatformAccountActive,
	} {
		if ok {
			passed++
		}
	}
	return passed
}

// GoLiveReadiness — единственный источник истины для выхода запуска в эфир.
type GoLiveReadiness struct {
	LaunchID string `json:"launch_id"`
	ReadinessChecks
	ComplianceApproved bool        `json:"compliance_approved"`
	OverallReadiness   int         `json:"overall_readiness"`
	IsReady            bool        `json:"is_ready"`
	RiskLevel          RiskLevel   `json:"risk_level"`
	RiskFactors        []string    `json:"risk_factors"`
	GuardStatus        GuardStatus `json:"guard_status"`
	LastGoVerdictAt    *time.Time  `json:"last_go_verdict_at,omitempty"`
	ManualOverride     bool        `json:"manual_override"`
	OverrideBy         string      `json:"override_by,omitempty"`
	OverrideReason     string      `json:"override_reason,omitempty"`
	OverrideAt         *time.Time  `json:"override_at,omitempty"`
	CheckedAt          time.Time   `json:"checked_at"`
}

// AllowsGoLive проверяет инвариант выхода в эфир: полная готовность или задокументированный обход.
func (r GoLiveReadiness) AllowsGoLive() bool {
	if r.IsReady {
		return true
	}
	return r.ManualOverride && strings.TrimSpace(r.OverrideReason) != "" && strings.TrimSpace(r.OverrideBy) != ""
}
