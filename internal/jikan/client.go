// Package jikan reads the top anime ranking and single-entry details from
// the Jikan v4 REST API.
package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"animedash/internal/metrics"
	"animedash/pkg/models"
)

const DefaultBaseURL = "https://api.jikan.moe/v4"

// Pages are the ranking pages that make up the top list.
var Pages = []int{1, 2}

var (
	// ErrUnavailable covers transport failures, non-200 answers and bodies
	// that are not the expected JSON.
	ErrUnavailable = errors.New("ranking api unavailable")
	ErrNotFound    = errors.New("anime not found")
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultBaseURL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TopPage fetches one page of the ranking.
func (c *Client) TopPage(ctx context.Context, page int) ([]RawAnime, error) {
	u := c.baseURL + "/top/anime?page=" + strconv.Itoa(page)

	var body topResponse
	if err := c.getJSON(ctx, endpointTop, u, &body); err != nil {
		return nil, fmt.Errorf("top page %d: %w", page, err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("top page %d: %w: missing data", page, ErrUnavailable)
	}
	return body.Data, nil
}

// Top fetches every page in Pages concurrently and concatenates them in
// page order. Either page failing fails the whole fetch.
func (c *Client) Top(ctx context.Context) ([]RawAnime, error) {
	results := make([][]RawAnime, len(Pages))

	g, gctx := errgroup.WithContext(ctx)
	for i, page := range Pages {
		g.Go(func() error {
			data, err := c.TopPage(gctx, page)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []RawAnime
	for _, data := range results {
		all = append(all, data...)
	}
	c.logger.Debug("fetched ranking", zap.Int("entries", len(all)), zap.Int("pages", len(Pages)))
	return all, nil
}

// Anime fetches the full detail of one entry.
func (c *Client) Anime(ctx context.Context, id int) (*models.Detail, error) {
	u := c.baseURL + "/anime/" + strconv.Itoa(id)

	var body detailResponse
	if err := c.getJSON(ctx, endpointAnime, u, &body); err != nil {
		return nil, fmt.Errorf("anime %d: %w", id, err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("anime %d: %w", id, ErrNotFound)
	}
	d := body.Data.toDetail()
	return &d, nil
}

// Endpoint labels, used for metrics and status mapping.
const (
	endpointTop   = "top"
	endpointAnime = "anime"
)

func (c *Client) getJSON(ctx context.Context, endpoint, u string, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// only a detail lookup can miss; a missing ranking page is an outage
	if resp.StatusCode == http.StatusNotFound && endpoint == endpointAnime {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("unexpected status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", b))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
