package domain

import "time"

// TrendStatus описывает жизненный цикл трендового продукта.
type TrendStatus string

const (
	TrendStatusDiscovered  TrendStatus = "DISCOVERED"
	TrendStatusAnalyzing   TrendStatus = "ANALYZING"
	TrendStatusShortlisted TrendStatus = "SHORTLISTED"
	TrendStatusLaunched    TrendStatus = "LAUNCHED"
	TrendStatusRejected    TrendStatus = "REJECTED"
	TrendStatusArchived    TrendStatus = "ARCHIVED"
)

// TrendFacts содержит неизменяемые факты обнаружения продукта.
type TrendFacts struct {
	Source              string `json:"source"`
	SourceURL           string `json:"source_url"`
	Name                string `json:"name"`
	Category            string `json:"category,omitempty"`
	Views               int64  `json:"views"`
	Likes               int64  `json:"likes"`
	Comments            int64  `json:"comments"`
	Shares              int64  `json:"shares"`
	SourceCostCents     int64  `json:"source_cost_cents"`
	SuggestedPriceCents int64  `json:"suggested_price_cents"`
}

// TrendProduct — кандидат на запуск вместе с оценками.
type TrendProduct struct {
	ID string `json:"id"`
	TrendFacts

	EngagementRate    float64 `json:"engagement_rate"`
	ViralityScore     int     `json:"virality_score"`
	ProfitScore       int     `json:"profit_score"`
	AvailabilityScore int     `json:"availability_score"`
	CompetitionScore  *int    `json:"competition_score,omitempty"`
	OverallScore      int     `json:"overall_score"`
	ShippingCostCents int64   `json:"shipping_cost_cents"`
	ProfitMarginCents int64   `json:"profit_margin_cents"`
	MarginPercent     float64 `json:"margin_percent"`

	Status       TrendStatus `json:"status"`
	Rank         *int        `json:"rank,omitempty"`
	RejectReason string      `json:"reject_reason,omitempty"`
	DiscoveredAt time.Time   `json:"discovered_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ArchivedAt   *time.Time  `json:"archived_at,omitempty"`
}

// ScoringSignals — частичное обновление оценок. nil означает «оставить прежнее значение».
type ScoringSignals struct {
	Virality     *int `json:"virality,omitempty"`
	Profit       *int `json:"profit,omitempty"`
	Availability *int `json:"availability,omitempty"`
	Competition  *int `json:"competition,omitempty"`
}

// TrendFilter задаёт выборку трендов.
type TrendFilter struct {
	Status   TrendStatus
	MinScore int
	Limit    int
}

// ShortlistEntry — денормализованная строка шортлиста.
type ShortlistEntry struct {
	Rank              int     `json:"rank"`
	TrendProductID    string  `json:"trend_product_id"`
	Name              string  `json:"name"`
	OverallScore      int     `json:"overall_score"`
	ProfitMarginCents int64   `json:"profit_margin_cents"`
	MarginPercent     float64 `json:"margin_percent"`
}

// DailyShortlist — снимок шортлиста, стабильный для аудита.
type DailyShortlist struct {
	ID        string           `json:"id"`
	Date      time.Time        `json:"date"`
	MinScore  int              `json:"min_score"`
	Entries   []ShortlistEntry `json:"entries"`
	CreatedAt time.Time        `json:"created_at"`
}
