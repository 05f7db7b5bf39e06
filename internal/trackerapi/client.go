package trackerapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jackdevtech455/youtube-analytics/internal/models"
	"github.com/jackdevtech455/youtube-analytics/pkg/config"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
	"github.com/jackdevtech455/youtube-analytics/pkg/telemetry"
)

// Client talks to the tracker API over HTTP/JSON. Each operation has its own
// circuit breaker, so a failing chart endpoint never rejects list requests.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	breakerSettings *gobreaker.Settings
	breakersMu      sync.Mutex
	breakers        map[string]*gobreaker.CircuitBreaker[[]byte]
}

// New creates a tracker API client
func New(cfg *config.APIConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api_base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api_base_url: %w", err)
	}

	logger := logging.WithComponent("tracker-api")

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}

	if cfg.BreakerEnabled {
		threshold := uint32(cfg.BreakerThreshold)
		if threshold == 0 {
			threshold = 5
		}
		c.breakerSettings = &gobreaker.Settings{
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// client errors mean the API is up
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return !apiErr.Temporary()
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}
	}

	logger.Info("Tracker API client initialized", zap.String("url", c.baseURL))

	return c, nil
}

// ListTrackers fetches every tracker
func (c *Client) ListTrackers(ctx context.Context) ([]models.Tracker, error) {
	var trackers []models.Tracker
	if err := c.getJSON(ctx, "list_trackers", "/trackers", nil, &trackers); err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}
	return trackers, nil
}

// CreateTracker submits a new tracker
func (c *Client) CreateTracker(ctx context.Context, payload models.TrackerCreate) (*models.Tracker, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tracker: %w", err)
	}

	raw, err := c.do(ctx, "create_tracker", http.MethodPost, "/trackers", nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	var tracker models.Tracker
	if err := json.Unmarshal(raw, &tracker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracker: %w", err)
	}
	return &tracker, nil
}

// TopVideos fetches the ranked list of a tracker, in rank order
func (c *Client) TopVideos(ctx context.Context, trackerID int64) ([]models.VideoTopItem, error) {
	var items []models.VideoTopItem
	path := "/trackers/" + strconv.FormatInt(trackerID, 10) + "/top"
	if err := c.getJSON(ctx, "top_videos", path, nil, &items); err != nil {
		return nil, fmt.Errorf("failed to get top videos of tracker %d: %w", trackerID, err)
	}
	return items, nil
}

// ChannelsMeta resolves channel ids. Unknown ids are absent from the result.
func (c *Client) ChannelsMeta(ctx context.Context, ids []string) (map[string]models.ChannelMeta, error) {
	if len(ids) == 0 {
		return map[string]models.ChannelMeta{}, nil
	}

	var metas []models.ChannelMeta
	query := url.Values{"ids": {strings.Join(ids, ",")}}
	if err := c.getJSON(ctx, "channels_meta", "/channels/meta", query, &metas); err != nil {
		return nil, fmt.Errorf("failed to resolve %d channels: %w", len(ids), err)
	}

	out := make(map[string]models.ChannelMeta, len(metas))
	for _, m := range metas {
		if m.ChannelID != "" {
			out[m.ChannelID] = m
		}
	}
	return out, nil
}

// Timeseries fetches the observations of one metric of a video over the
// last days
func (c *Client) Timeseries(ctx context.Context, videoID, metric string, days int) ([]models.TimeSeriesPoint, error) {
	query := url.Values{}
	if metric != "" {
		query.Set("metric", metric)
	}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	var points []models.TimeSeriesPoint
	path := "/videos/" + url.PathEscape(videoID) + "/timeseries"
	if err := c.getJSON(ctx, "timeseries", path, query, &points); err != nil {
		return nil, fmt.Errorf("failed to get timeseries of %s: %w", videoID, err)
	}
	if points == nil {
		points = []models.TimeSeriesPoint{}
	}
	return points, nil
}

// Health checks that the API answers its health endpoint
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "health", "/health", nil, &status); err != nil {
		return err
	}
	if !status.OK {
		return fmt.Errorf("tracker API reports unhealthy")
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	raw, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", op, err)
	}
	return nil
}

// do performs one request through the rate limiter and circuit breaker and
// returns the body of a 2xx response
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "trackerapi."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		telemetry.RecordAPIRequest(ctx, op, "cancelled")
		return nil, err
	}

	start := time.Now()
	call := func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, query, body)
	}

	var (
		raw []byte
		err error
	)
	if breaker := c.breakerFor(op); breaker != nil {
		raw, err = breaker.Execute(call)
	} else {
		raw, err = call()
	}

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	case err != nil:
		outcome = "failure"
	}
	telemetry.RecordAPIRequest(ctx, op, outcome)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("Tracker API request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Tracker API request",
		zap.String("op", op),
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)))
	return raw, nil
}

// breakerFor returns the circuit breaker of op, creating it on first use.
// It returns nil when breakers are disabled.
func (c *Client) breakerFor(op string) *gobreaker.CircuitBreaker[[]byte] {
	if c.breakerSettings == nil {
		return nil
	}

	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	if cb, ok := c.breakers[op]; ok {
		return cb
	}
	st := *c.breakerSettings
	st.Name = "tracker-api/" + op
	cb := gobreaker.NewCircuitBreaker[[]byte](st)
	c.breakers[op] = cb
	return cb
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return raw, nil
}
