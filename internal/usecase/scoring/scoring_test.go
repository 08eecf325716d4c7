package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViralityZeroViews(t *testing.T) {
	for _, tc := range [][3]int64{{0, 0, 0}, {10, 5, 1}, {1000, 1000, 1000}} {
		require.Equal(t, 0, Virality(0, tc[0], tc[1], tc[2]))
		require.Zero(t, EngagementRate(0, tc[0], tc[1], tc[2]))
	}
}

func TestIngestScenario(t *testing.T) {
	rate := EngagementRate(200000, 8000, 1000, 500)
	require.InDelta(t, 4.75, rate, 1e-9)
	require.Equal(t, 100, Virality(200000, 8000, 1000, 500))

	m := ProfitMargin(1000, 2999)
	require.Equal(t, int64(150), m.ShippingCost)
	require.Equal(t, int64(150), m.PlatformFee)
	require.Equal(t, int64(117), m.PaymentFee)
	require.Equal(t, int64(1417), m.TotalCost)
	require.Equal(t, int64(1582), m.ProfitMargin)
	require.InDelta(t, 52.7509, m.MarginPercent, 1e-3)
	require.Equal(t, 100, ProfitScore(m.MarginPercent))

	require.Equal(t, 90, OverallScore(100, 100, DefaultAvailabilityScore))
}

func TestViralityMidRange(t *testing.T) {
	// 10000/100000*40 = 4, rate = 1% → 60.
	require.Equal(t, 64, Virality(10000, 80, 10, 10))
}

func TestProfitMarginZeroPrice(t *testing.T) {
	m := ProfitMargin(500, 0)
	require.Zero(t, m.MarginPercent)
	require.Equal(t, int64(-605), m.ProfitMargin)
	require.Equal(t, 0, ProfitScore(m.MarginPercent))
}

func TestProfitScoreClamp(t *testing.T) {
	tests := []struct {
		percent float64
		want    int
	}{
		{-10, 0},
		{0, 0},
		{12.3, 25},
		{49.9, 100},
		{80, 100},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ProfitScore(tt.percent), "percent %v", tt.percent)
	}
}

func TestOverallScoreMonotonic(t *testing.T) {
	for base := 0; base <= 100; base += 10 {
		for v := 0; v < 100; v++ {
			require.LessOrEqual(t, OverallScore(v, base, base), OverallScore(v+1, base, base))
			require.LessOrEqual(t, OverallScore(base, v, base), OverallScore(base, v+1, base))
			require.LessOrEqual(t, OverallScore(base, base, v), OverallScore(base, base, v+1))
		}
	}
}

func TestAnalystOverallScoreMonotonic(t *testing.T) {
	for base := 0; base <= 100; base += 25 {
		for v := 0; v < 100; v++ {
			require.LessOrEqual(t, AnalystOverallScore(v, base, base, base), AnalystOverallScore(v+1, base, base, base))
			require.LessOrEqual(t, AnalystOverallScore(base, v, base, base), AnalystOverallScore(base, v+1, base, base))
			require.LessOrEqual(t, AnalystOverallScore(base, base, v, base), AnalystOverallScore(base, base, v+1, base))
			// рост конкуренции не должен повышать оценку
			require.GreaterOrEqual(t, AnalystOverallScore(base, base, base, v), AnalystOverallScore(base, base, base, v+1))
		}
	}
}

func TestFormulasDiffer(t *testing.T) {
	require.Equal(t, 64, OverallScore(80, 60, 40))
	require.Equal(t, 56, AnalystOverallScore(80, 60, 40, 70))
}
