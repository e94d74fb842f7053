package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"inboxsync/internal/db"
	"inboxsync/internal/ledger"
	"inboxsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()

	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { _ = db.Close() })
}

func TestLoadEmpty(t *testing.T) {
	setupDB(t)

	state, err := NewLedgerRepository().Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state.LastSyncTime)
	assert.Empty(t, state.SyncedFiles)
	assert.Empty(t, state.SyncHistory)
}

func TestSaveLoad(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	repo := NewLedgerRepository()

	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	state := model.NewSyncState()
	state.LastSyncTime = &ts
	state.SyncedFiles["sha-a"] = model.SyncedFileRecord{
		Filename: "a.md", Path: "inbox/a.md", SyncedAt: ts, LocalPath: "notes/a.md",
	}
	state.SyncedFiles["sha-b"] = model.SyncedFileRecord{
		Filename: "b.md", Path: "inbox/b.md", SyncedAt: ts.Add(time.Minute),
	}
	state.SyncHistory = []model.SyncRunRecord{
		{Timestamp: ts.Add(time.Hour), FilesAdded: 2, Errors: []string{"c.md: boom"}},
		{Timestamp: ts, FilesSkipped: 1},
	}

	require.NoError(t, repo.Save(ctx, state))

	got, err := repo.Load(ctx)
	require.NoError(t, err)

	require.NotNil(t, got.LastSyncTime)
	assert.True(t, ts.Equal(*got.LastSyncTime))

	require.Len(t, got.SyncedFiles, 2)
	a := got.SyncedFiles["sha-a"]
	assert.Equal(t, "a.md", a.Filename)
	assert.Equal(t, "inbox/a.md", a.Path)
	assert.Equal(t, "notes/a.md", a.LocalPath)
	assert.True(t, ts.Equal(a.SyncedAt))
	assert.Empty(t, got.SyncedFiles["sha-b"].LocalPath)

	require.Len(t, got.SyncHistory, 2)
	assert.Equal(t, 2, got.SyncHistory[0].FilesAdded)
	assert.Equal(t, []string{"c.md: boom"}, got.SyncHistory[0].Errors)
	assert.Equal(t, 1, got.SyncHistory[1].FilesSkipped)
	assert.Equal(t, []string{}, got.SyncHistory[1].Errors)
}

func TestSaveReplacesState(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	repo := NewLedgerRepository()

	first := model.NewSyncState()
	first.SyncedFiles["old"] = model.SyncedFileRecord{Filename: "old.md", Path: "inbox/old.md", SyncedAt: time.Now()}
	first.SyncHistory = []model.SyncRunRecord{{Timestamp: time.Now(), FilesAdded: 1}}
	require.NoError(t, repo.Save(ctx, first))

	second := model.NewSyncState()
	second.SyncedFiles["new"] = model.SyncedFileRecord{Filename: "new.md", Path: "inbox/new.md", SyncedAt: time.Now()}
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got.SyncedFiles, "old")
	assert.Contains(t, got.SyncedFiles, "new")
	assert.Empty(t, got.SyncHistory)
}

func TestBacksLedger(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	l := ledger.New(NewLedgerRepository(), ledger.Options{})
	l.RecordSync(model.RemoteFile{Name: "a.md", Path: "inbox/a.md", SHA: "sha-a"}, "inbox/a.md")
	l.AddSyncRunRecord(1, 0, nil)
	require.NoError(t, l.Save(ctx))

	reloaded := ledger.New(NewLedgerRepository(), ledger.Options{})
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.IsAlreadySynced("sha-a"))
	assert.Len(t, reloaded.History(0), 1)

	require.NoError(t, reloaded.Reset(ctx))

	state, err := NewLedgerRepository().Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.SyncedFiles)
	assert.Nil(t, state.LastSyncTime)
}
