package local_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/storage/local"
)

func TestStatusFileMarkAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")
	status, err := local.OpenStatusFile(path)
	require.NoError(t, err)

	_, ok := status.Status("https://acme.edu")
	assert.False(t, ok)

	require.NoError(t, status.Mark("https://acme.edu", crawler.RoutingFailed))
	require.NoError(t, status.Mark("https://beta.edu", crawler.RoutingSkipped))
	require.NoError(t, status.Mark("https://acme.edu", crawler.RoutingSuccess))

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []string{"https://acme.edu"}, doc["completed"])
	assert.Equal(t, []string{"https://beta.edu"}, doc["skipped"])
	assert.Empty(t, doc["failed"])

	reloaded, err := local.OpenStatusFile(path)
	require.NoError(t, err)
	st, ok := reloaded.Status("https://acme.edu")
	require.True(t, ok)
	assert.Equal(t, crawler.RoutingSuccess, st)
	assert.Equal(t, map[crawler.RoutingStatus]int{
		crawler.RoutingSuccess: 1,
		crawler.RoutingSkipped: 1,
	}, reloaded.Counts())
}

func TestStatusFileErrors(t *testing.T) {
	t.Parallel()

	_, err := local.OpenStatusFile("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = local.OpenStatusFile(path)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	status, err := local.OpenStatusFile(empty)
	require.NoError(t, err)
	assert.Empty(t, status.Counts())
}
