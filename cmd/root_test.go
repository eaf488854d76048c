package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/app"
	"github.com/JakeFAU/campus-kg-crawler/internal/chunker"
	"github.com/JakeFAU/campus-kg-crawler/internal/config"
	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/ledger"
)

type fakeApp struct {
	cfg     config.Config
	ledger  *ledger.FileLedger
	chunker *chunker.Chunker

	crawled []crawler.Target
	closed  bool
}

func (f *fakeApp) Close()                    { f.closed = true }
func (f *fakeApp) Logger() *zap.Logger       { return zap.NewNop() }
func (f *fakeApp) Config() config.Config     { return f.cfg }
func (f *fakeApp) Ledger() crawler.Ledger    { return f.ledger }
func (f *fakeApp) Chunker() *chunker.Chunker { return f.chunker }

func (f *fakeApp) ServeMetrics(context.Context) error { return nil }

func (f *fakeApp) Crawl(_ context.Context, source crawler.TargetSource) (app.Summary, error) {
	f.crawled = source.Targets()
	return app.Summary{
		RunID:      "run-1",
		Targets:    len(f.crawled),
		ReportPath: f.cfg.Output.ReportPath,
		Counts:     map[crawler.RoutingStatus]int{crawler.RoutingSuccess: 1, crawler.RoutingSkipped: 1},
	}, nil
}

func newFakeApp(t *testing.T) *fakeApp {
	t.Helper()
	l, err := ledger.NewFileLedger(filepath.Join(t.TempDir(), "failed_sites.json"))
	require.NoError(t, err)
	c, err := chunker.New(60, 10)
	require.NoError(t, err)
	return &fakeApp{ledger: l, chunker: c}
}

func runCLI(t *testing.T, fake *fakeApp, args ...string) (string, error) {
	t.Helper()
	factory := func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	root := newRootCmd(factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	targets := filepath.Join(t.TempDir(), "targets.csv")
	require.NoError(t, os.WriteFile(targets, []byte("name,website\nAcme College,acme.edu\nNowhere U,\n"), 0o600))

	fake := newFakeApp(t)
	out, err := runCLI(t, fake, "crawl", "--targets", targets, "--workers", "3", "--resume")
	require.NoError(t, err)

	assert.Equal(t, targets, fake.cfg.Crawler.TargetsFile)
	assert.Equal(t, 3, fake.cfg.Crawler.Workers)
	assert.True(t, fake.cfg.Crawler.Resume)
	assert.Equal(t, []crawler.Target{{Name: "Acme College", Website: "acme.edu"}, {Name: "Nowhere U"}}, fake.crawled)
	assert.Contains(t, out, "run run-1: 2 targets, 1 completed, 1 skipped, 0 failed")
	assert.True(t, fake.closed)
}

func TestCrawlCommandMissingTargets(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, newFakeApp(t), "crawl", "--targets", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.ErrorContains(t, err, "load targets")
}

func TestCrawlCommandRejectsBadWorkers(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, newFakeApp(t), "crawl", "--workers", "0")
	require.ErrorContains(t, err, "crawler.workers")
}

func TestFactoryErrorStopsCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd(func(context.Context, config.Config, *zap.Logger) (App, error) {
		return nil, errors.New("db down")
	})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ledger", "list"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestLedgerCommands(t *testing.T) {
	t.Parallel()

	fake := newFakeApp(t)
	require.NoError(t, fake.ledger.RecordSSLFailure(context.Background(),
		crawler.Target{Name: "Acme College", Website: "acme.edu"}, "x509: certificate signed by unknown authority"))

	out, err := runCLI(t, fake, "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "https://acme.edu")
	assert.Contains(t, out, "1 entries")

	out, err = runCLI(t, fake, "ledger", "list", "--category", "robots_blocked")
	require.NoError(t, err)
	assert.Contains(t, out, "0 entries")

	_, err = runCLI(t, fake, "ledger", "list", "--category", "bogus")
	require.ErrorIs(t, err, ledger.ErrUnknownCategory)

	out, err = runCLI(t, fake, "ledger", "check", "acme.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "skip acme.edu:")

	out, err = runCLI(t, fake, "ledger", "reset", "acme.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "reset acme.edu in ssl_verification_failed")

	out, err = runCLI(t, fake, "ledger", "check", "acme.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "ok acme.edu")
}

func TestChunkCommand(t *testing.T) {
	t.Parallel()

	page := filepath.Join(t.TempDir(), "page.html")
	html := `<html><body><main><p>Acme College offers Computer Science. Graduates become Software Engineers at Google. The campus is in Palo Alto, California.</p></main></body></html>`
	require.NoError(t, os.WriteFile(page, []byte(html), 0o600))

	out, err := runCLI(t, newFakeApp(t), "chunk", page)
	require.NoError(t, err)
	assert.Contains(t, out, "--- chunk 1")
	assert.Contains(t, out, "(size 60, overlap 10)")

	out, err = runCLI(t, newFakeApp(t), "chunk", "--json", page)
	require.NoError(t, err)
	assert.Contains(t, out, `"start_pos":0`)

	_, err = runCLI(t, newFakeApp(t), "chunk")
	require.Error(t, err)
}
