package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

// Config описывает подключение к REST API видеопровайдера.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client — HTTP-клиент провайдера трансляций.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ domain.BroadcastProvider = (*Client)(nil)

// NewClient создаёт клиента провайдера.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("broadcast base url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}, nil
}

// SetHTTPClient подменяет транспорт.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// CreateRoom реализует domain.BroadcastProvider.
func (c *Client) CreateRoom(ctx context.Context, name string, private bool) (domain.Room, error) {
	privacy := "public"
	if private {
		privacy = "private"
	}
	var resp struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Privacy string `json:"privacy"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms", "create_room", map[string]any{"name": name, "privacy": privacy}, &resp); err != nil {
		return domain.Room{}, err
	}
	if resp.ID == "" {
		return domain.Room{}, fmt.Errorf("%w: create room: empty room id", domain.ErrExternalDependency)
	}
	return domain.Room{ID: resp.ID, Private: resp.Privacy == "private"}, nil
}

// StartBroadcast реализует domain.BroadcastProvider.
func (c *Client) StartBroadcast(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "broadcast/start"), "start_broadcast", nil, nil)
}

// StopBroadcast реализует domain.BroadcastProvider.
func (c *Client) StopBroadcast(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "broadcast/stop"), "stop_broadcast", nil, nil)
}

// ListParticipants реализует domain.BroadcastProvider.
func (c *Client) ListParticipants(ctx context.Context, roomID string) (int, error) {
	var resp struct {
		TotalCount int `json:"total_count"`
	}
	if err := c.do(ctx, http.MethodGet, roomPath(roomID, "participants"), "list_participants", nil, &resp); err != nil {
		return 0, err
	}
	return resp.TotalCount, nil
}

// ListRecordings реализует domain.BroadcastProvider.
func (c *Client) ListRecordings(ctx context.Context, roomID string) ([]domain.Recording, error) {
	var resp struct {
		Data []struct {
			DownloadURL string `json:"download_url"`
			StartedAt   int64  `json:"start_ts"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, roomPath(roomID, "recordings"), "list_recordings", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Recording, 0, len(resp.Data))
	for _, r := range resp.Data {
		out = append(out, domain.Recording{URL: r.DownloadURL, StartedAt: time.Unix(r.StartedAt, 0).UTC()})
	}
	return out, nil
}

func roomPath(roomID, suffix string) string {
	return "/rooms/" + url.PathEscape(roomID) + "/" + suffix
}

// do выполняет запрос. Любая сетевая ошибка или ответ 4xx/5xx заворачивается в ErrExternalDependency.
func (c *Client) do(ctx context.Context, method, path, op string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("broadcast", op, path, start, err)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrExternalDependency, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %v", domain.ErrExternalDependency, op, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrExternalDependency, op, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", domain.ErrExternalDependency, op, err)
	}
	return nil
}
