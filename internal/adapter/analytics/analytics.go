// Package analytics reports aggregate feed views as Measurement Protocol
// pageview hits.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://www.google-analytics.com/collect"
	DefaultTimeout  = 2 * time.Second
)

// Hit is one pageview.
type Hit struct {
	ClientID    string
	Title       string
	UserAgent   string
	DocumentURL string
}

// Reporter sends hits without blocking the caller. Failures are only logged.
type Reporter interface {
	Report(hit Hit)
}

// Noop drops every hit.
type Noop struct{}

func (Noop) Report(Hit) {}

type Options struct {
	TrackingID string
	Endpoint   string
	Timeout    time.Duration
	// RatePerSecond and Burst bound outbound hits; hits over the limit are dropped.
	RatePerSecond float64
	Burst         int
}

// Client posts hits to a Measurement Protocol v1 collect endpoint.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewClient(httpClient *http.Client, opts Options, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Client{
		http:    httpClient,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		log:     log.With(slog.String("component", "analytics")),
	}
}

// Report sends hit in the background.
func (c *Client) Report(hit Hit) {
	if !c.limiter.Allow() {
		c.log.Warn("Analytics hit dropped by rate limit", slog.String("title", hit.Title))
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
		defer cancel()
		if err := c.Send(ctx, hit); err != nil {
			c.log.Error("Failed to report analytics hit",
				slog.String("title", hit.Title),
				slog.Any("error", err),
			)
		}
	}()
}

// Wait blocks until every hit in flight has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Send posts hit synchronously.
func (c *Client) Send(ctx context.Context, hit Hit) error {
	cid := strings.TrimSpace(hit.ClientID)
	if cid == "" {
		cid = uuid.New().String()
	}
	form := url.Values{
		"v":   {"1"},
		"tid": {c.opts.TrackingID},
		"cid": {cid},
		"t":   {"pageview"},
		"dl":  {hit.DocumentURL},
		"dt":  {hit.Title},
		"ua":  {hit.UserAgent},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if hit.UserAgent != "" {
		req.Header.Set("User-Agent", hit.UserAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post hit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
