package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

// Endpoints — адреса проверок здоровья. Пустой адрес означает «сигнал не настроен» и даёт false.
type Endpoints struct {
	Inventory string
	Payment   string
	Platform  string
}

// HTTP опрашивает три внешних эндпоинта. Сигнал true только при ответе 2xx.
// В запрос добавляются launch_id и sku (id тренда), чтобы склад проверял конкретный товар.
type HTTP struct {
	endpoints  Endpoints
	httpClient *http.Client
}

var _ domain.HealthChecker = (*HTTP)(nil)

// NewHTTP создаёт проверку.
func NewHTTP(endpoints Endpoints, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{endpoints: endpoints, httpClient: &http.Client{Timeout: timeout}}
}

// Check реализует domain.HealthChecker. Запросы идут параллельно; недоступный сервис — это false, а не ошибка.
func (h *HTTP) Check(ctx context.Context, launch domain.Launch) (domain.HealthSignals, error) {
	var (
		wg      sync.WaitGroup
		signals domain.HealthSignals
	)
	probe := func(name, endpoint string, dst *bool) {
		defer wg.Done()
		*dst = h.probe(ctx, name, endpoint, launch)
	}
	wg.Add(3)
	go probe("inventory", h.endpoints.Inventory, &signals.InventoryAvailable)
	go probe("payment", h.endpoints.Payment, &signals.PaymentGatewayHealthy)
	go probe("platform", h.endpoints.Platform, &signals.PlatformAccountActive)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return domain.HealthSignals{}, err
	}
	return signals, nil
}

func (h *HTTP) probe(ctx context.Context, name, endpoint string, launch domain.Launch) bool {
	if strings.TrimSpace(endpoint) == "" {
		return false
	}
	target, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	q := target.Query()
	q.Set("launch_id", launch.ID)
	if launch.Product.TrendProductID != "" {
		q.Set("sku", launch.Product.TrendProductID)
	}
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return false
	}
	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("status %d", resp.StatusCode)
	}
	metrics.ObserveNetworkRequest("health", name, target.Host, start, err)
	if resp != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}
	return err == nil
}

// Static возвращает заданные сигналы. Используется в dev-окружении без внешних сервисов.
type Static struct {
	Signals domain.HealthSignals
	Err     error
}

// Check реализует domain.HealthChecker.
func (s Static) Check(context.Context, domain.Launch) (domain.HealthSignals, error) {
	return s.Signals, s.Err
}

// AllHealthy — статическая проверка, где все сигналы в порядке.
func AllHealthy() Static {
	return Static{Signals: domain.HealthSignals{InventoryAvailable: true, PaymentGatewayHealthy: true, PlatformAccountActive: true}}
}
