package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRobotsGateAppliesRules(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			fmt.Fprintln(w, "User-agent: *\nDisallow: /private")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := NewRobotsGate(context.Background(), srv.URL, RobotsGateConfig{UserAgent: "test-agent"}, zap.NewNop())
	require.True(t, gate.Allowed(srv.URL+"/programs"))
	require.False(t, gate.Allowed(srv.URL+"/private/page"))
	require.False(t, gate.Allowed(srv.URL+"/private"))
	require.EqualValues(t, 1, hits.Load(), "robots.txt fetched once per gate")
}

func TestRobotsGateAllowsOnFailure(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"not found": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"forbidden": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(handler)
			defer srv.Close()

			gate := NewRobotsGate(context.Background(), srv.URL, RobotsGateConfig{UserAgent: "ua"}, zap.NewNop())
			require.True(t, gate.Allowed(srv.URL+"/anything"))
		})
	}
}

func TestRobotsGateTimeoutAllowsAll(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		fmt.Fprintln(w, "User-agent: *\nDisallow: /")
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	gate := NewRobotsGate(context.Background(), srv.URL, RobotsGateConfig{Timeout: 50 * time.Millisecond}, zap.NewNop())
	require.Less(t, time.Since(start), 2*time.Second)
	require.True(t, gate.Allowed(srv.URL+"/"))
}

func TestAllowAllPolicy(t *testing.T) {
	t.Parallel()

	var policy RobotsPolicy = AllowAllPolicy{}
	require.True(t, policy.Allowed("https://example.com/whatever"))
}
