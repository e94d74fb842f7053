package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"inboxsync/internal/config"
	"inboxsync/internal/model"
	"inboxsync/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useDaemon points the CLI at srv for the duration of the test.
func useDaemon(t *testing.T, srv *httptest.Server) {
	t.Helper()

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	prev := cfg
	c := config.Default
	c.DaemonPort = port
	cfg = &c
	t.Cleanup(func() { cfg = prev })
}

type localRecorder struct {
	calls  int
	result model.SyncResult
}

func (l *localRecorder) run(context.Context) (model.SyncResult, error) {
	l.calls++
	return l.result, nil
}

func TestSyncOnceUsesRunningDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.SyncResult{Success: true, FilesAdded: 2})
	}))
	defer srv.Close()
	useDaemon(t, srv)

	local := &localRecorder{}
	result, err := syncOnce(context.Background(), local.run)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.FilesAdded)
	assert.Zero(t, local.calls)
}

func TestSyncOnceDaemonBusy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(model.SyncResult{Errors: []string{"sync already in progress"}})
	}))
	defer srv.Close()
	useDaemon(t, srv)

	local := &localRecorder{}
	_, err := syncOnce(context.Background(), local.run)

	assert.ErrorIs(t, err, syncer.ErrAlreadyRunning)
	assert.Zero(t, local.calls)
}

func TestSyncOnceDaemonShuttingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(model.SyncResult{Errors: []string{"daemon is shutting down"}})
	}))
	defer srv.Close()
	useDaemon(t, srv)

	local := &localRecorder{}
	_, err := syncOnce(context.Background(), local.run)

	assert.Error(t, err)
	assert.Zero(t, local.calls)
}

func TestSyncOnceFallsBackWithoutDaemon(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	useDaemon(t, srv)
	srv.Close()

	local := &localRecorder{result: model.SyncResult{Success: true, FilesAdded: 1}}
	result, err := syncOnce(context.Background(), local.run)
	require.NoError(t, err)

	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, result.FilesAdded)
}
