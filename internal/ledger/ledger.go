package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inboxsync/internal/logger"
	"inboxsync/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultMaxHistory    = 100
	DefaultRetentionDays = 90
)

// Store persists the ledger state.
type Store interface {
	Load(ctx context.Context) (*model.SyncState, error)
	Save(ctx context.Context, state *model.SyncState) error
}

type Options struct {
	MaxHistory    int
	RetentionDays int
}

// Ledger remembers which remote content hashes have already been imported
// and keeps a bounded history of runs. State lives in memory and is only
// persisted by Save and Reset.
type Ledger struct {
	mu         sync.RWMutex
	store      Store
	state      *model.SyncState
	maxHistory int
	retention  time.Duration
	now        func() time.Time
}

func New(store Store, opts Options) *Ledger {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}

	return &Ledger{
		store:      store,
		state:      model.NewSyncState(),
		maxHistory: opts.MaxHistory,
		retention:  time.Duration(opts.RetentionDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

func (l *Ledger) Load(ctx context.Context) error {
	state, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	if state == nil {
		state = model.NewSyncState()
	}
	if state.SyncedFiles == nil {
		state.SyncedFiles = make(map[string]model.SyncedFileRecord)
	}
	if state.SyncHistory == nil {
		state.SyncHistory = []model.SyncRunRecord{}
	}

	l.mu.Lock()
	l.state = state
	l.mu.Unlock()

	logger.Log.Debug("ledger loaded",
		zap.Int("synced", len(state.SyncedFiles)),
		zap.Int("runs", len(state.SyncHistory)))

	return nil
}

func (l *Ledger) Save(ctx context.Context) error {
	if err := l.store.Save(ctx, l.State()); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	return nil
}

func (l *Ledger) IsAlreadySynced(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.state.SyncedFiles[hash]
	return ok
}

// RecordSync marks file's hash as imported. localPath is empty when the
// duplicate policy chose not to write.
func (l *Ledger) RecordSync(file model.RemoteFile, localPath string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.state.SyncedFiles[file.SHA] = model.SyncedFileRecord{
		Filename:  file.Name,
		Path:      file.Path,
		SyncedAt:  now,
		LocalPath: localPath,
	}
	l.state.LastSyncTime = new(now)
}

func (l *Ledger) AddSyncRunRecord(added, skipped int, errs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := model.SyncRunRecord{
		Timestamp:    l.now(),
		FilesAdded:   added,
		FilesSkipped: skipped,
		Errors:       append([]string{}, errs...),
	}

	history := append([]model.SyncRunRecord{rec}, l.state.SyncHistory...)
	if len(history) > l.maxHistory {
		history = history[:l.maxHistory]
	}
	l.state.SyncHistory = history
}

// Cleanup drops file records and run records older than the retention
// window and returns how many file records were removed.
func (l *Ledger) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.retention)

	removed := 0
	for hash, rec := range l.state.SyncedFiles {
		if rec.SyncedAt.Before(cutoff) {
			delete(l.state.SyncedFiles, hash)
			removed++
		}
	}

	kept := l.state.SyncHistory[:0]
	for _, run := range l.state.SyncHistory {
		if !run.Timestamp.Before(cutoff) {
			kept = append(kept, run)
		}
	}
	l.state.SyncHistory = kept

	if removed > 0 {
		logger.Log.Info("ledger cleaned up",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff))
	}

	return removed
}

func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.state = model.NewSyncState()
	l.mu.Unlock()

	logger.Log.Info("ledger reset")

	return l.Save(ctx)
}

func (l *Ledger) State() *model.SyncState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

func (l *Ledger) LastSyncTime() *time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.state.LastSyncTime == nil {
		return nil
	}
	return new(*l.state.LastSyncTime)
}

func (l *Ledger) SyncedCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state.SyncedFiles)
}

// OldestRecordDate returns the earliest SyncedAt, or nil for an empty ledger.
func (l *Ledger) OldestRecordDate() *time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var oldest *time.Time
	for _, rec := range l.state.SyncedFiles {
		if oldest == nil || rec.SyncedAt.Before(*oldest) {
			oldest = new(rec.SyncedAt)
		}
	}

	return oldest
}

// History returns up to n of the most recent runs, newest first. n <= 0
// returns all of them.
func (l *Ledger) History(n int) []model.SyncRunRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	runs := l.state.SyncHistory
	if n > 0 && n < len(runs) {
		runs = runs[:n]
	}

	out := make([]model.SyncRunRecord, 0, len(runs))
	for _, run := range runs {
		run.Errors = append([]string{}, run.Errors...)
		out = append(out, run)
	}

	return out
}
