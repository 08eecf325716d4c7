package domain

import "time"

// ProfitTracking — строка журнала расчёта прибыли. Только добавление.
type ProfitTracking struct {
	ID                  string     `json:"id"`
	LaunchID            string     `json:"launch_id"`
	ShowsCount          int        `json:"shows_count"`
	UnitsSold           int64      `json:"units_sold"`
	GrossRevenueCents   int64      `json:"gross_revenue_cents"`
	ProductCostCents    int64      `json:"product_cost_cents"`
	ShippingCostCents   int64      `json:"shipping_cost_cents"`
	PlatformFeeCents    int64      `json:"platform_fee_cents"`
	PaymentFeeCents     int64      `json:"payment_fee_cents"`
	HostCommissionCents int64      `json:"host_commission_cents"`
	MarketingCostCents  int64      `json:"marketing_cost_cents"`
	RefundsCents        int64      `json:"refunds_cents"`
	TotalCostCents      int64      `json:"total_cost_cents"`
	NetProfitCents      int64      `json:"net_profit_cents"`
	MarginPercent       float64    `json:"margin_percent"`
	BreakEvenUnits      int64      `json:"break_even_units"`
	BelowThreshold      bool       `json:"below_threshold"`
	AlertAt             *time.Time `json:"alert_at,omitempty"`
	CalculatedAt        time.Time  `json:"calculated_at"`
}
