package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inboxsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestServerSyncAndStatus(t *testing.T) {
	h := newHarness(t, testConfig())
	h.remote.files = []model.RemoteFile{{Name: "a.md", Path: "inbox/a.md", SHA: "sha-a"}}
	s := NewServer(h.manager, 0)

	rec := do(t, s, http.MethodPost, "/sync")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[model.SyncResult](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.FilesAdded)

	rec = do(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[model.RunSnapshot](t, rec)
	assert.Equal(t, model.RunStatusIdle, snap.Status)
	assert.Equal(t, 1, snap.Runs)
	assert.Equal(t, 1, snap.SyncedFiles)
	assert.Equal(t, "manual", snap.LastTrigger)
	require.NotNil(t, snap.LastResult)
	assert.Equal(t, 1, snap.LastResult.FilesAdded)
}

func TestServerSyncConflict(t *testing.T) {
	h := newHarness(t, testConfig())
	h.remote.block = make(chan struct{})
	s := NewServer(h.manager, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.manager.Trigger(context.Background(), model.TriggerInterval)
	}()
	require.Eventually(t, h.manager.syncer.IsRunning, time.Second, time.Millisecond)

	rec := do(t, s, http.MethodPost, "/sync")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"sync already in progress"}, decode[model.SyncResult](t, rec).Errors)

	rec = do(t, s, http.MethodPost, "/ledger/reset")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(h.remote.block)
	<-done
}

func TestServerHistory(t *testing.T) {
	h := newHarness(t, testConfig())
	s := NewServer(h.manager, 0)

	for i := range 3 {
		h.ledger.AddSyncRunRecord(i, 0, nil)
	}

	rec := do(t, s, http.MethodGet, "/history?n=2")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]model.SyncRunRecord](t, rec)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].FilesAdded)

	rec = do(t, s, http.MethodGet, "/history?n=bogus")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.SyncRunRecord](t, rec), 3)
}

func TestServerLedgerEndpoints(t *testing.T) {
	h := newHarness(t, testConfig())
	h.remote.files = []model.RemoteFile{{Name: "a.md", Path: "inbox/a.md", SHA: "sha-a"}}
	s := NewServer(h.manager, 0)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/sync").Code)

	rec := do(t, s, http.MethodPost, "/ledger/cleanup")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"removed": 0}, decode[map[string]int](t, rec))

	rec = do(t, s, http.MethodPost, "/ledger/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, h.ledger.SyncedCount())
}

func TestServerConnection(t *testing.T) {
	h := newHarness(t, testConfig())
	s := NewServer(h.manager, 0)

	rec := do(t, s, http.MethodGet, "/connection")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ConnectionResult{Success: true, User: "octocat", Repository: "octo/notes"},
		decode[model.ConnectionResult](t, rec))
}

func TestServerStop(t *testing.T) {
	h := newHarness(t, testConfig())
	s := NewServer(h.manager, 0)

	rec := do(t, s, http.MethodPost, "/stop")
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-s.StopCh():
	default:
		t.Fatal("stop was not signalled")
	}

	// A second request does not block on the full channel.
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/stop").Code)
}

func TestServerStopWaitsForSync(t *testing.T) {
	h := newHarness(t, testConfig())
	h.remote.block = make(chan struct{})
	s := NewServer(h.manager, 0)

	synced := make(chan int, 1)
	go func() { synced <- do(t, s, http.MethodPost, "/sync").Code }()
	require.Eventually(t, func() bool {
		return h.manager.syncer.IsRunning()
	}, time.Second, time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	assert.True(t, h.manager.syncer.IsRunning())
	assert.Empty(t, stopped)

	close(h.remote.block)
	require.NoError(t, <-stopped)
	assert.False(t, h.manager.syncer.IsRunning())
	assert.Equal(t, http.StatusOK, <-synced)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/sync").Code)
}
