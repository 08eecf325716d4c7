// Package scoring содержит чистые детерминированные функции оценки кандидатов.
package scoring

import "math"

const (
	// DefaultAvailabilityScore подставляется, пока доступность не оценена аналитиком.
	DefaultAvailabilityScore = 50

	shippingRate       = 0.15
	platformFeeRate    = 0.05
	paymentFeeRate     = 0.029
	paymentFixedCents  = 30
	viewsPerFullPoints = 100000.0
)

// Clamp ограничивает значение отрезком [0,100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round(v float64) int {
	return int(math.Round(v))
}

// EngagementRate возвращает долю взаимодействий от просмотров в процентах. При нуле просмотров 0.
func EngagementRate(views, likes, comments, shares int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes+comments+shares) / float64(views) * 100
}

// Virality оценивает вирусность по охвату и вовлечённости.
func Virality(views, likes, comments, shares int64) int {
	if views <= 0 {
		return 0
	}
	rate := EngagementRate(views, likes, comments, shares)
	return Clamp(round(float64(views)/viewsPerFullPoints*40 + rate*60))
}

// MarginBreakdown — раскладка себестоимости и маржи в центах.
type MarginBreakdown struct {
	ShippingCost  int64
	PlatformFee   int64
	PaymentFee    int64
	TotalCost     int64
	ProfitMargin  int64
	MarginPercent float64
}

// ProfitMargin считает комиссии и маржу. Каждая комиссия округляется до цента.
func ProfitMargin(sourceCost, suggestedPrice int64) MarginBreakdown {
	shipping := int64(math.Round(float64(sourceCost) * shippingRate))
	platform := int64(math.Round(float64(suggestedPrice) * platformFeeRate))
	payment := int64(math.Round(float64(suggestedPrice)*paymentFeeRate)) + paymentFixedCents
	total := sourceCost + shipping + platform + payment
	margin := suggestedPrice - total
	var percent float64
	if suggestedPrice > 0 {
		percent = float64(margin) / float64(suggestedPrice) * 100
	}
	return MarginBreakdown{
		ShippingCost:  shipping,
		PlatformFee:   platform,
		PaymentFee:    payment,
		TotalCost:     total,
		ProfitMargin:  margin,
		MarginPercent: percent,
	}
}

// ProfitScore переводит процент маржи в оценку.
func ProfitScore(marginPercent float64) int {
	if math.IsNaN(marginPercent) {
		return 0
	}
	return Clamp(round(marginPercent * 2))
}

// OverallScore — взвешенная оценка на этапе поступления тренда.
func OverallScore(virality, profit, availability int) int {
	return round(float64(virality)*0.4 + float64(profit)*0.4 + float64(availability)*0.2)
}

// AnalystOverallScore — взвешенная оценка после ручного анализа, когда известна конкуренция.
func AnalystOverallScore(virality, profit, availability, competition int) int {
	return round(float64(virality)*0.3 + float64(profit)*0.3 + float64(availability)*0.2 + float64(100-competition)*0.2)
}
