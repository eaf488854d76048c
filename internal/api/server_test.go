package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) RecordSSLFailure(ctx context.Context, target crawler.Target, message string) error {
	args := m.Called(ctx, target, message)
	return args.Error(0)
}

func (m *mockLedger) ShouldSkip(ctx context.Context, website string) (bool, string, error) {
	args := m.Called(ctx, website)
	return args.Bool(0), args.String(1), args.Error(2)
}

func (m *mockLedger) List(ctx context.Context, category crawler.FailureCategory) ([]crawler.SiteFailureRecord, error) {
	args := m.Called(ctx, category)
	records, _ := args.Get(0).([]crawler.SiteFailureRecord)
	return records, args.Error(1)
}

func (m *mockLedger) Reset(ctx context.Context, category crawler.FailureCategory, website string) error {
	args := m.Called(ctx, category, website)
	return args.Error(0)
}

type staticCounts map[crawler.RoutingStatus]int

func (s staticCounts) Counts() map[crawler.RoutingStatus]int { return s }

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil, zap.NewNop()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	ready := NewServer(nil, nil, func(context.Context) error { return nil }, nil)
	require.Equal(t, http.StatusOK, serve(t, ready, "/readyz").Code)

	down := NewServer(nil, nil, func(context.Context) error { return errors.New("db down") }, nil)
	rec := serve(t, down, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "not ready")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, nil)
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil, nil), "/api/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	counts := staticCounts{crawler.RoutingSuccess: 3, crawler.RoutingFailed: 1}
	rec = serve(t, NewServer(nil, counts, nil, nil), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"completed":3,"skipped":0,"failed":1}`, rec.Body.String())
}

func TestServer_ListLedger(t *testing.T) {
	t.Parallel()

	seen := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ssl := []crawler.SiteFailureRecord{
		{Name: "Acme College", Website: "https://acme.edu", ErrorType: crawler.SSLErrorType, FirstFailedAt: seen, LastCheckedAt: seen, RetryCount: 1, Skip: true},
		{Name: "Beta U", Website: "https://beta.edu", ErrorType: crawler.SSLErrorType, FirstFailedAt: seen, LastCheckedAt: seen, RetryCount: 2, Skip: true},
	}
	store := &mockLedger{}
	store.On("List", mock.Anything, crawler.FailureSSL).Return(ssl, nil)
	store.On("List", mock.Anything, crawler.FailureRobots).Return([]crawler.SiteFailureRecord(nil), nil)
	store.On("List", mock.Anything, crawler.FailureTimeout).Return([]crawler.SiteFailureRecord(nil), nil)
	s := NewServer(store, nil, nil, zap.NewNop())

	t.Run("AllCategories", func(t *testing.T) {
		rec := serve(t, s, "/api/ledger")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Total   int `json:"total"`
			Entries []struct {
				Category string `json:"category"`
				Website  string `json:"website"`
			} `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, 2, body.Total)
		require.Len(t, body.Entries, 2)
		require.Equal(t, string(crawler.FailureSSL), body.Entries[0].Category)
	})

	t.Run("PagedCategory", func(t *testing.T) {
		rec := serve(t, s, "/api/ledger/ssl_verification_failed?limit=1&offset=1")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "https://beta.edu")
		require.NotContains(t, rec.Body.String(), "https://acme.edu")
	})

	t.Run("OffsetPastEnd", func(t *testing.T) {
		rec := serve(t, s, "/api/ledger/ssl_verification_failed?offset=10")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"total":2,"entries":[]}`, rec.Body.String())
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		rec := serve(t, s, "/api/ledger/bogus")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("BadLimit", func(t *testing.T) {
		rec := serve(t, s, "/api/ledger?limit=-3")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_ListLedgerErrors(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil, nil), "/api/ledger")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store := &mockLedger{}
	store.On("List", mock.Anything, crawler.FailureSSL).Return(nil, errors.New("boom"))
	rec = serve(t, NewServer(store, nil, nil, nil), "/api/ledger/ssl_verification_failed")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	store.AssertExpectations(t)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil, nil)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
