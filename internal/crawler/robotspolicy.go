package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// DefaultRobotsTimeout caps how long the gate waits for robots.txt.
const DefaultRobotsTimeout = 5 * time.Second

// RobotsGate applies one site's robots.txt. The file is fetched once, at
// construction; any failure to obtain or parse it allows everything.
type RobotsGate struct {
	group     *robotstxt.Group
	userAgent string
}

// RobotsGateConfig controls how robots.txt is fetched.
type RobotsGateConfig struct {
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

// NewRobotsGate fetches website's robots.txt and returns a gate caching the decision.
func NewRobotsGate(ctx context.Context, website string, cfg RobotsGateConfig, logger *zap.Logger) *RobotsGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := &RobotsGate{userAgent: cfg.UserAgent}
	data, err := loadRobots(ctx, website, cfg)
	if err != nil {
		logger.Info("robots.txt unavailable; allowing all paths",
			zap.String("website", website),
			zap.Error(err),
		)
		return gate
	}
	gate.group = data.FindGroup(cfg.UserAgent)
	return gate
}

// Allowed implements RobotsPolicy.
func (g *RobotsGate) Allowed(rawURL string) bool {
	if g == nil || g.group == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	target := parsed.EscapedPath()
	if target == "" {
		target = "/"
	}
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return g.group.Test(target)
}

func loadRobots(ctx context.Context, website string, cfg RobotsGateConfig) (*robotstxt.RobotsData, error) {
	robotsURL, err := JoinPath(website, "/robots.txt")
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRobotsTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("robots status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

// AllowAllPolicy permits every URL; used when robots are ignored.
type AllowAllPolicy struct{}

// Allowed implements RobotsPolicy.
func (AllowAllPolicy) Allowed(string) bool { return true }
