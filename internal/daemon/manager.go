package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"inboxsync/internal/config"
	"inboxsync/internal/ledger"
	"inboxsync/internal/logger"
	"inboxsync/internal/model"
	"inboxsync/internal/syncer"

	"go.uber.org/zap"
)

// ErrStopped is returned by triggers and ledger maintenance after Shutdown.
var ErrStopped = errors.New("daemon is shutting down")

// Remote is the remote client as the daemon sees it.
type Remote interface {
	syncer.RemoteClient
	TestConnection(ctx context.Context) model.ConnectionResult
}

type Deps struct {
	Syncer    *syncer.Syncer
	Ledger    *ledger.Ledger
	Remote    Remote
	Scheduler Scheduler
	Notifier  Notifier

	// SetTargetPath is called on Reconfigure. Optional.
	SetTargetPath func(string)
	// NewRemote rebuilds the remote client on Reconfigure. Optional.
	NewRemote func(cfg *config.Config) (Remote, error)
}

// Manager owns the sync triggers: the one-shot startup sync, the repeating
// auto sync and manual requests from the CLI.
type Manager struct {
	mu     sync.Mutex
	cfg    *config.Config
	remote Remote

	syncer        *syncer.Syncer
	ledger        *ledger.Ledger
	sched         Scheduler
	notifier      Notifier
	setTargetPath func(string)
	newRemote     func(cfg *config.Config) (Remote, error)
	state         *RunState

	ctx          context.Context
	startup      Handle
	startupFired bool
	auto         Handle

	closed   bool
	inflight sync.WaitGroup
}

func NewManager(cfg *config.Config, deps Deps) *Manager {
	if deps.Scheduler == nil {
		deps.Scheduler = NewTimerScheduler()
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}

	return &Manager{
		cfg:           cfg,
		remote:        deps.Remote,
		syncer:        deps.Syncer,
		ledger:        deps.Ledger,
		sched:         deps.Scheduler,
		notifier:      deps.Notifier,
		setTargetPath: deps.SetTargetPath,
		newRemote:     deps.NewRemote,
		state:         NewRunState(),
		ctx:           context.Background(),
	}
}

// Start schedules the startup sync and the auto sync. Triggers fired by the
// scheduler run with ctx.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ctx = ctx

	if m.cfg.Sync.OnStartup && m.cfg.IsConfigured() && !m.startupFired && m.startup == 0 {
		delay := m.cfg.StartupDelay()
		m.startup = m.sched.ScheduleOnce(delay, m.runStartup)

		logger.Log.Info("startup sync scheduled",
			zap.Duration("delay", delay))
	}

	m.startAutoSyncLocked()
}

// Context is the ctx given to Start, or context.Background before that.
func (m *Manager) Context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// Shutdown stops the schedule, refuses new work and waits for a running sync
// or ledger operation to finish. Cancel the ctx given to Start first so the
// run stops between files.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancelStartupLocked()
	m.stopAutoSyncLocked()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for running sync: %w", ctx.Err())
	}
}

// begin registers one unit of work Shutdown has to wait for.
func (m *Manager) begin() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStopped
	}

	m.inflight.Add(1)
	return m.inflight.Done, nil
}

func (m *Manager) runStartup() {
	m.mu.Lock()
	if m.startupFired {
		m.mu.Unlock()
		return
	}
	m.startupFired = true
	m.startup = 0
	ctx := m.ctx
	m.mu.Unlock()

	_, _ = m.Trigger(ctx, model.TriggerStartup)
}

func (m *Manager) runInterval() {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	_, _ = m.Trigger(ctx, model.TriggerInterval)
}

func (m *Manager) cancelStartupLocked() {
	if m.startup != 0 {
		m.sched.Cancel(m.startup)
		m.startup = 0
	}
}

func (m *Manager) startAutoSyncLocked() {
	m.stopAutoSyncLocked()

	if m.closed || !m.cfg.Sync.Auto || !m.cfg.IsConfigured() {
		return
	}

	interval := m.cfg.Interval()
	if interval <= 0 {
		logger.Log.Warn("auto sync disabled, interval must be positive",
			zap.Duration("interval", interval))
		return
	}
	m.auto = m.sched.ScheduleRepeating(interval, m.runInterval)

	logger.Log.Info("auto sync scheduled",
		zap.Duration("interval", interval))
}

func (m *Manager) stopAutoSyncLocked() {
	if m.auto != 0 {
		m.sched.Cancel(m.auto)
		m.auto = 0
	}
}

// Trigger runs one sync on behalf of source. A manual trigger also cancels a
// pending startup sync. When a sync is already running the returned error is
// syncer.ErrAlreadyRunning.
func (m *Manager) Trigger(ctx context.Context, source model.TriggerSource) (model.SyncResult, error) {
	m.mu.Lock()
	if source == model.TriggerManual {
		m.cancelStartupLocked()
		m.startupFired = true
	}
	notify := m.cfg.Notifications
	m.mu.Unlock()

	done, err := m.begin()
	if err != nil {
		return model.SyncResult{Errors: []string{err.Error()}}, err
	}
	defer done()

	logger.Log.Info("sync triggered", zap.String("source", string(source)))

	result, err := m.syncer.TrySync(ctx)
	if errors.Is(err, syncer.ErrAlreadyRunning) {
		m.state.RecordRejected()
		if notify {
			m.notifier.Notify(inProgressMessage)
		}
		return model.SyncResult{Errors: []string{err.Error()}}, err
	}

	m.state.RecordRun(source, result)

	if notify {
		switch {
		case !result.Success:
			m.notifier.Notify(failureMessage(result))
		case source == model.TriggerManual:
			m.notifier.Notify(successMessage(result.FilesAdded))
		}
	}

	return result, nil
}

// Reconfigure applies a reloaded config: sync options, target folder, remote
// client and the auto sync schedule. The startup sync is not rescheduled.
func (m *Manager) Reconfigure(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg
	m.syncer.SetOptions(syncer.OptionsFromConfig(cfg))

	if m.setTargetPath != nil {
		m.setTargetPath(cfg.TargetPath)
	}

	if m.newRemote != nil {
		remote, err := m.newRemote(cfg)
		if err != nil {
			logger.Log.Error("failed to rebuild remote client, keeping the old one",
				zap.Error(err))
		} else {
			m.remote = remote
			m.syncer.SetRemote(remote)
		}
	}

	m.startAutoSyncLocked()

	logger.Log.Info("config reloaded",
		zap.String("repository", cfg.GitHub.Repository),
		zap.Bool("auto", cfg.Sync.Auto),
		zap.Int("interval_min", cfg.Sync.Interval))
}

func (m *Manager) Snapshot() model.RunSnapshot {
	snap := m.state.Snapshot()
	if m.syncer.IsRunning() {
		snap.Status = model.RunStatusRunning
	}

	snap.LastSync = m.ledger.LastSyncTime()
	snap.SyncedFiles = m.ledger.SyncedCount()

	return snap
}

func (m *Manager) History(n int) []model.SyncRunRecord {
	return m.ledger.History(n)
}

// Cleanup prunes expired ledger records and persists the result.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	done, err := m.begin()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up ledger: %w", err)
	}
	defer done()

	removed := 0

	err = m.syncer.WhileIdle(func() error {
		removed = m.ledger.Cleanup()
		return m.ledger.Save(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up ledger: %w", err)
	}

	return removed, nil
}

// ResetLedger forgets every synced file. It is refused while a sync runs.
func (m *Manager) ResetLedger(ctx context.Context) error {
	done, err := m.begin()
	if err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	defer done()

	err = m.syncer.WhileIdle(func() error {
		return m.ledger.Reset(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}

	return nil
}

func (m *Manager) TestConnection(ctx context.Context) model.ConnectionResult {
	m.mu.Lock()
	remote := m.remote
	m.mu.Unlock()

	return remote.TestConnection(ctx)
}
