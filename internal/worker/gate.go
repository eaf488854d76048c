package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// Admission is the Gate's verdict for a Target before any network access.
type Admission struct {
	Skip   bool
	Reason string
	// Resumed is set when the Target completed in an earlier run; its status
	// entry is left untouched.
	Resumed bool
}

// Gate serializes the shared checks and writes of the worker group: the
// blocklist, resume status and failed-site ledger on the way in, and the
// ledger and status file on the way out.
type Gate struct {
	mu        sync.Mutex
	ledger    crawler.Ledger
	status    crawler.StatusTracker
	blocklist *crawler.DomainBlocklist
	resume    bool
	logger    *zap.Logger
}

// NewGate builds a Gate. Any dependency may be nil to disable its check.
func NewGate(ledger crawler.Ledger, status crawler.StatusTracker, blocklist *crawler.DomainBlocklist, resume bool, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		ledger:    ledger,
		status:    status,
		blocklist: blocklist,
		resume:    resume,
		logger:    logger,
	}
}

// StatusKey identifies a Target in the status file: its normalized website,
// or its name when it has none.
func StatusKey(target crawler.Target) string {
	if website := crawler.NormalizeWebsite(target.Website); website != "" {
		return website
	}
	return target.Name
}

// Admit decides whether target may be crawled. It never writes the status
// file; the caller marks the outcome once the report is durable.
func (g *Gate) Admit(ctx context.Context, target crawler.Target) Admission {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.resume && g.status != nil {
		if status, ok := g.status.Status(StatusKey(target)); ok && status == crawler.RoutingSuccess {
			return Admission{Skip: true, Resumed: true, Reason: "already completed"}
		}
	}

	if target.Website == "" {
		return Admission{Skip: true, Reason: "no website"}
	}
	if g.blocklist != nil && g.blocklist.BlocksWebsite(target.Website) {
		return Admission{Skip: true, Reason: "domain blocklisted"}
	}
	if g.ledger != nil {
		skip, reason, err := g.ledger.ShouldSkip(ctx, target.Website)
		if err != nil {
			// An unreadable ledger must not stop the run.
			g.logger.Error("ledger lookup failed", zap.String("website", target.Website), zap.Error(err))
		} else if skip {
			return Admission{Skip: true, Reason: reason}
		}
	}
	return Admission{}
}

// RecordSSLFailure adds target to the failed-site ledger.
func (g *Gate) RecordSSLFailure(ctx context.Context, target crawler.Target, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ledger == nil {
		return nil
	}
	if err := g.ledger.RecordSSLFailure(ctx, target, message); err != nil {
		return fmt.Errorf("record ssl failure: %w", err)
	}
	return nil
}

// Mark records the Target's final routing in the status file.
func (g *Gate) Mark(target crawler.Target, status crawler.RoutingStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := StatusKey(target)
	if g.status == nil || key == "" {
		return nil
	}
	if err := g.status.Mark(key, status); err != nil {
		g.logger.Error("status update failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("mark status: %w", err)
	}
	return nil
}
