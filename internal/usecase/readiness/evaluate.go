package readiness

import (
	"math"
	"sort"
	"time"

	"trend-launch/internal/domain"
)

// DefaultStaleAfter — срок годности последнего GO-вердикта.
const DefaultStaleAfter = 120 * time.Minute

// Assessment — результат расчёта по набору проверок.
type Assessment struct {
	OverallReadiness int
	IsReady          bool
	RiskLevel        domain.RiskLevel
	RiskFactors      []string
}

// Assess считает процент готовности и уровень риска. Риск только повышается.
func Assess(c domain.ReadinessChecks) Assessment {
	passed := c.Passed()
	overall := int(math.Round(100 * float64(passed) / float64(domain.ReadinessCheckCount)))
	a := Assessment{
		OverallReadiness: overall,
		IsReady:          overall == 100,
		RiskLevel:        domain.RiskLow,
		RiskFactors:      []string{},
	}
	if !c.TestStreamsPass {
		a.RiskLevel = a.RiskLevel.Escalate(domain.RiskCritical)
		a.RiskFactors = append(a.RiskFactors, "no passing test stream")
	}
	if c.TestStreamsExpired {
		a.RiskLevel = a.RiskLevel.Escalate(domain.RiskHigh)
		a.RiskFactors = append(a.RiskFactors, "test stream verdict expired")
	}
	if !c.AssetsComplete {
		a.RiskLevel = a.RiskLevel.Escalate(domain.RiskHigh)
		a.RiskFactors = append(a.RiskFactors, "asset packs incomplete")
	}
	if !c.HostHandoffConfirmed {
		a.RiskLevel = a.RiskLevel.Escalate(domain.RiskMedium)
		a.RiskFactors = append(a.RiskFactors, "host handoff not confirmed")
	}
	if !c.InventoryAvailable {
		a.RiskFactors = append(a.RiskFactors, "inventory unavailable")
	}
	if !c.PaymentGatewayHealthy {
		a.RiskFactors = append(a.RiskFactors, "payment gateway unhealthy")
	}
	if !c.PlatformAccountActive {
		a.RiskFactors = append(a.RiskFactors, "platform account inactive")
	}
	return a
}

// streamChecks возвращает признак прохождения, протухания и время последнего GO.
func streamChecks(streams []domain.TestStream, now time.Time, staleAfter time.Duration) (pass, expired bool, lastGo *time.Time) {
	goStreams := make([]domain.TestStream, 0, len(streams))
	for _, stream := range streams {
		if stream.Verdict == domain.VerdictGo && stream.EndedAt != nil {
			goStreams = append(goStreams, stream)
		}
	}
	if len(goStreams) == 0 {
		return false, false, nil
	}
	sort.SliceStable(goStreams, func(i, j int) bool { return goStreams[i].EndedAt.Before(*goStreams[j].EndedAt) })
	at := *goStreams[len(goStreams)-1].EndedAt
	return true, now.Sub(at) > staleAfter, &at
}

func assetsComplete(packs []domain.AssetPack) bool {
	for _, pack := range packs {
		if pack.Status == domain.AssetPackStatusReady {
			return true
		}
	}
	return false
}

// handoffConfirmed учитывает только подтверждение текущего ведущего запуска.
func handoffConfirmed(launch domain.Launch, packs []domain.HostHandoffPack) bool {
	if launch.HostID == "" {
		return false
	}
	for _, pack := range packs {
		if pack.HostID == launch.HostID && pack.HostConfirmed {
			return true
		}
	}
	return false
}
