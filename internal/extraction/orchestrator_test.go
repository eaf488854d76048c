package extraction

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/chunker"
	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/hash/sha256"
	"github.com/JakeFAU/campus-kg-crawler/internal/oracle"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) ExtractTriples(ctx context.Context, text, contextName, sourceURL string) ([]crawler.RawTriple, error) {
	args := m.Called(ctx, text, contextName, sourceURL)
	triples, _ := args.Get(0).([]crawler.RawTriple)
	return triples, args.Error(1) //nolint:wrapcheck
}

type panicOracle struct{}

func (panicOracle) ExtractTriples(context.Context, string, string, string) ([]crawler.RawTriple, error) {
	panic("model exploded")
}

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) PutObject(ctx context.Context, path, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

type stubFetcher struct {
	outcome crawler.FetchOutcome
	calls   int
}

func (s *stubFetcher) Fetch(context.Context, string, ...crawler.FetchOption) crawler.FetchOutcome {
	s.calls++
	return s.outcome
}

func okPage(url, body string) *stubFetcher {
	return &stubFetcher{outcome: crawler.FetchOutcome{
		Status: crawler.FetchOK,
		Result: crawler.FetchResult{URL: url, StatusCode: http.StatusOK, Body: []byte(body)},
	}}
}

func newChunker(t *testing.T, size, overlap int) *chunker.Chunker {
	t.Helper()
	ch, err := chunker.New(size, overlap)
	require.NoError(t, err)
	return ch
}

const programPage = `<html><body>
<section>Computer Science program teaches Machine Learning and Python. Graduates work at Google.</section>
</body></html>`

func TestExtractPageFiltersAndNormalizes(t *testing.T) {
	t.Parallel()

	o := &mockOracle{}
	o.On("ExtractTriples", mock.Anything, mock.Anything, "MIT", "https://mit.edu/programs").
		Return([]crawler.RawTriple{
			{Head: "MIT", Relation: "offers", Tail: "CS", Confidence: 0.95},
			{Head: "M.I.T.", Relation: "OFFERS", Tail: "Computer Science", Confidence: 0.9},
			{Head: "CS", Relation: "develops", Tail: "ML", Confidence: 0.5},
		}, nil).Once()

	orch, err := New(Config{ConfidenceThreshold: DefaultConfidenceThreshold}, newChunker(t, 1000, 200), o, nil,
		WithLogger(zap.NewNop()))
	require.NoError(t, err)

	page, ok := orch.ExtractPage(context.Background(), okPage("https://mit.edu/programs", programPage),
		crawler.Target{Name: "MIT", Website: "https://mit.edu"}, "https://mit.edu/programs")
	require.True(t, ok)
	require.Equal(t, "https://mit.edu/programs", page.SourceURL)
	require.Equal(t, 1, page.Count)
	require.Equal(t, []crawler.NormalizedTriple{{
		Head:       "Massachusetts Institute of Technology",
		Relation:   "OFFERS",
		Tail:       "Computer Science",
		Confidence: 0.95,
	}}, page.Entries)
	require.Empty(t, page.ContentHash)
	o.AssertExpectations(t)
}

func TestExtractPageSkipsFailedAndEmptyPages(t *testing.T) {
	t.Parallel()

	o := &mockOracle{}
	orch, err := New(Config{}, newChunker(t, 1000, 200), o, nil)
	require.NoError(t, err)
	target := crawler.Target{Name: "Acme"}

	notFound := &stubFetcher{outcome: crawler.FetchOutcome{Status: crawler.FetchNotFound}}
	_, ok := orch.ExtractPage(context.Background(), notFound, target, "https://acme.edu/missing")
	require.False(t, ok)

	_, ok = orch.ExtractPage(context.Background(), okPage("https://acme.edu/blank", "  \n "), target, "https://acme.edu/blank")
	require.False(t, ok)

	o.AssertNotCalled(t, "ExtractTriples", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractTextIsolatesOracleErrors(t *testing.T) {
	t.Parallel()

	html := "<p>" + strings.Repeat("Acme offers Robotics to every student. ", 8) + "</p>" +
		"<p>" + strings.Repeat("Graduates are hired by Tesla each year. ", 8) + "</p>"
	o := &mockOracle{}
	o.On("ExtractTriples", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Robotics")
	}), "Acme College", "u").Return(nil, errors.New("rate limited")).Once()
	o.On("ExtractTriples", mock.Anything, mock.Anything, "Acme College", "u").
		Return([]crawler.RawTriple{{Head: "Tesla", Relation: "HIRES_FROM", Tail: "Acme College", Confidence: 0.9}}, nil)

	orch, err := New(Config{ConfidenceThreshold: 0.8}, newChunker(t, 300, 50), o, nil)
	require.NoError(t, err)

	got := orch.ExtractText(context.Background(), html, "Acme College", "u")
	require.Equal(t, []crawler.NormalizedTriple{{Head: "Tesla", Relation: "HIRES_FROM", Tail: "Acme College", Confidence: 0.9}}, got)
	require.Greater(t, len(o.Calls), 1)
}

func TestExtractTextRecoversOraclePanic(t *testing.T) {
	t.Parallel()

	orch, err := New(Config{}, newChunker(t, 1000, 200), panicOracle{}, nil)
	require.NoError(t, err)

	var got []crawler.NormalizedTriple
	require.NotPanics(t, func() {
		got = orch.ExtractText(context.Background(), programPage, "Acme", "u")
	})
	require.Empty(t, got)
}

func TestExtractPageWithRuleBasedOracleAndArchive(t *testing.T) {
	t.Parallel()

	store := &mockBlobStore{}
	hasher := sha256.New()
	digest, err := hasher.Hash([]byte(programPage))
	require.NoError(t, err)
	wantPath := "pages/run-1/acme.edu/" + digest + ".html"
	store.On("PutObject", mock.Anything, wantPath, "text/html; charset=utf-8", []byte(programPage)).
		Return("file:///archive/"+wantPath, nil).Once()

	orch, err := New(
		Config{ConfidenceThreshold: 0.8, RunID: "run-1", ArchivePrefix: "pages"},
		newChunker(t, 1000, 200),
		oracle.RuleBased{},
		nil,
		WithHasher(hasher),
		WithArchive(store),
	)
	require.NoError(t, err)

	page, ok := orch.ExtractPage(context.Background(), okPage("https://acme.edu/programs", programPage),
		crawler.Target{Name: "Acme College"}, "https://acme.edu/programs")
	require.True(t, ok)
	require.Equal(t, digest, page.ContentHash)
	require.Equal(t, "file:///archive/"+wantPath, page.ArchiveURI)
	require.Contains(t, page.Entries, crawler.NormalizedTriple{
		Head: "Acme College", Relation: "OFFERS", Tail: "Computer Science", Confidence: 0.92,
	})
	require.Contains(t, page.Entries, crawler.NormalizedTriple{
		Head: "Google", Relation: "HIRES_FROM", Tail: "Acme College", Confidence: 0.88,
	})
	require.Equal(t, len(page.Entries), page.Count)
	store.AssertExpectations(t)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	ch := newChunker(t, 100, 10)
	_, err := New(Config{}, nil, oracle.RuleBased{}, nil)
	require.Error(t, err)
	_, err = New(Config{}, ch, nil, nil)
	require.Error(t, err)
	_, err = New(Config{ConfidenceThreshold: 1.5}, ch, oracle.RuleBased{}, nil)
	require.Error(t, err)
	_, err = New(Config{}, ch, oracle.RuleBased{}, nil, WithArchive(&mockBlobStore{}))
	require.Error(t, err)
}
