package domain

import "time"

// LaunchWindow — фиксированная длительность кампании.
const LaunchWindow = 7 * 24 * time.Hour

// LaunchStatus описывает состояние запуска.
type LaunchStatus string

const (
	LaunchStatusPlanned          LaunchStatus = "PLANNED"
	LaunchStatusAssetsGenerating LaunchStatus = "ASSETS_GENERATING"
	LaunchStatusTestStreaming    LaunchStatus = "TEST_STREAMING"
	LaunchStatusReady            LaunchStatus = "READY"
	LaunchStatusLive             LaunchStatus = "LIVE"
	LaunchStatusCompleted        LaunchStatus = "COMPLETED"
	LaunchStatusCancelled        LaunchStatus = "CANCELLED"
)

var launchOrder = map[LaunchStatus]int{
	LaunchStatusPlanned:          0,
	LaunchStatusAssetsGenerating: 1,
	LaunchStatusTestStreaming:    2,
	LaunchStatusReady:            3,
	LaunchStatusLive:             4,
	LaunchStatusCompleted:        5,
}

// Stage возвращает позицию статуса в линейном автомате. Для CANCELLED и неизвестных значений -1.
func (s LaunchStatus) Stage() int {
	if stage, ok := launchOrder[s]; ok {
		return stage
	}
	return -1
}

// Terminal сообщает, что запуск больше не может двигаться.
func (s LaunchStatus) Terminal() bool {
	return s == LaunchStatusCompleted || s == LaunchStatusCancelled
}

// Cancellable сообщает, можно ли отменить запуск в этом состоянии.
func (s LaunchStatus) Cancellable() bool {
	stage := s.Stage()
	return stage >= 0 && stage < LaunchStatusLive.Stage()
}

// Predecessor возвращает статус, из которого допустим переход в s.
func (s LaunchStatus) Predecessor() (LaunchStatus, bool) {
	stage := s.Stage()
	if stage <= 0 {
		return "", false
	}
	for status, idx := range launchOrder {
		if idx == stage-1 {
			return status, true
		}
	}
	return "", false
}

// ProductSnapshot — копия тренда на момент запуска. Последующие изменения тренда её не затрагивают.
type ProductSnapshot struct {
	TrendProductID      string  `json:"trend_product_id"`
	Name                string  `json:"name"`
	Category            string  `json:"category,omitempty"`
	SourceURL           string  `json:"source_url"`
	SourceCostCents     int64   `json:"source_cost_cents"`
	ShippingCostCents   int64   `json:"shipping_cost_cents"`
	SuggestedPriceCents int64   `json:"suggested_price_cents"`
	ProfitMarginCents   int64   `json:"profit_margin_cents"`
	MarginPercent       float64 `json:"margin_percent"`
	ViralityScore       int     `json:"virality_score"`
	ProfitScore         int     `json:"profit_score"`
	OverallScore        int     `json:"overall_score"`
}

// SnapshotOf копирует текущее состояние тренда.
func SnapshotOf(t TrendProduct) ProductSnapshot {
	return ProductSnapshot{
		TrendProductID:      t.ID,
		Name:                t.Name,
		Category:            t.Category,
		SourceURL:           t.SourceURL,
		SourceCostCents:     t.SourceCostCents,
		ShippingCostCents:   t.ShippingCostCents,
		SuggestedPriceCents: t.SuggestedPriceCents,
		ProfitMarginCents:   t.ProfitMarginCents,
		MarginPercent:       t.MarginPercent,
		ViralityScore:       t.ViralityScore,
		ProfitScore:         t.ProfitScore,
		OverallScore:        t.OverallScore,
	}
}

// Launch — ограниченная по времени кампания для одного продукта.
type Launch struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Product      ProductSnapshot `json:"product_snapshot"`
	LaunchDate   time.Time       `json:"launch_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       LaunchStatus    `json:"status"`
	HostID       string          `json:"host_id,omitempty"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LaunchFilter задаёт выборку запусков.
type LaunchFilter struct {
	Status LaunchStatus
	Limit  int
}
