// Package naver implements news.Source over the Naver news search API.
package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

// DefaultBaseURL is the Naver news search endpoint.
const DefaultBaseURL = "https://openapi.naver.com/v1/search/news.json"

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// ErrMissingCredentials is returned by New when the client id or secret is empty.
var ErrMissingCredentials = errors.New("naver client id and secret are required")

// Config configures the API client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client calls the search API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var _ news.Source = (*Client)(nil)

type searchResponse struct {
	LastBuildDate string            `json:"lastBuildDate"`
	Total         int               `json:"total"`
	Start         int               `json:"start"`
	Display       int               `json:"display"`
	Items         []news.SourceItem `json:"items"`
}

type errorResponse struct {
	Message string `json:"errorMessage"`
	Code    string `json:"errorCode"`
}

// New builds a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}, nil
}

// Search runs one search request. Transport failures, non-200 answers, and
// undecodable bodies all wrap news.ErrSourceUnavailable.
func (c *Client) Search(ctx context.Context, req news.SearchRequest) (news.SearchResult, error) {
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return news.SearchResult{}, fmt.Errorf("parse base url: %w", err)
	}
	q := endpoint.Query()
	q.Set("query", req.Query)
	if req.Display > 0 {
		q.Set("display", strconv.Itoa(req.Display))
	}
	if req.Start > 0 {
		q.Set("start", strconv.Itoa(req.Start))
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return news.SearchResult{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("X-Naver-Client-Id", c.cfg.ClientID)
	httpReq.Header.Set("X-Naver-Client-Secret", c.cfg.ClientSecret)
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveSourceRequest(0)
		return news.SearchResult{}, fmt.Errorf("%w: %w", news.ErrSourceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.ObserveSourceRequest(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
			return news.SearchResult{}, fmt.Errorf("%w: status %d: %s (%s)",
				news.ErrSourceUnavailable, resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return news.SearchResult{}, fmt.Errorf("%w: status %d", news.ErrSourceUnavailable, resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return news.SearchResult{}, fmt.Errorf("%w: decode response: %w", news.ErrSourceUnavailable, err)
	}
	c.logger.Debug("news search complete",
		zap.String("query", req.Query),
		zap.Int("total", decoded.Total),
		zap.Int("items", len(decoded.Items)),
		zap.Duration("duration", time.Since(started)),
	)
	if decoded.Items == nil {
		decoded.Items = []news.SourceItem{}
	}
	return news.SearchResult{Total: decoded.Total, Items: decoded.Items}, nil
}
