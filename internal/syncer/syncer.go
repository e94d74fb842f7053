package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"inboxsync/internal/config"
	"inboxsync/internal/logger"
	"inboxsync/internal/model"

	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("sync already in progress")

const (
	stateIdle int32 = iota
	stateRunning
)

type RemoteClient interface {
	ListFiles(ctx context.Context) ([]model.RemoteFile, error)
	DownloadContent(ctx context.Context, file model.RemoteFile) (string, error)
	DeleteFile(ctx context.Context, file model.RemoteFile) error
	MoveToProcessed(ctx context.Context, file model.RemoteFile, content string) error
}

type LocalStore interface {
	HandleDuplicate(filename, content string, policy model.DuplicatePolicy) (string, error)
}

type Ledger interface {
	IsAlreadySynced(hash string) bool
	RecordSync(file model.RemoteFile, localPath string)
	AddSyncRunRecord(added, skipped int, errs []string)
	Cleanup() int
	Save(ctx context.Context) error
}

type Options struct {
	DuplicatePolicy model.DuplicatePolicy
	DeleteAfterSync bool
	MoveToProcessed bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DuplicatePolicy: cfg.Sync.DuplicateHandling,
		DeleteAfterSync: cfg.Sync.DeleteAfterSync,
		MoveToProcessed: cfg.Sync.MoveToProcessed,
	}
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeSkipped
)

// Syncer pulls new files from the remote inbox into the local store. At most
// one run is active at a time; concurrent callers are rejected, not queued.
type Syncer struct {
	mu     sync.RWMutex
	remote RemoteClient
	opts   Options

	store  LocalStore
	ledger Ledger
	state  atomic.Int32
}

func New(remote RemoteClient, store LocalStore, ledger Ledger, opts Options) *Syncer {
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = model.DuplicateSkip
	}

	return &Syncer{
		remote: remote,
		store:  store,
		ledger: ledger,
		opts:   opts,
	}
}

// SetOptions takes effect from the next file processed.
func (s *Syncer) SetOptions(opts Options) {
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = model.DuplicateSkip
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

func (s *Syncer) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// SetRemote swaps the remote client, e.g. after the token changed.
func (s *Syncer) SetRemote(remote RemoteClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = remote
}

func (s *Syncer) client() RemoteClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remote
}

func (s *Syncer) IsRunning() bool {
	return s.state.Load() == stateRunning
}

// Sync runs one pass. A call made while another pass is active returns at
// once with a failed result carrying ErrAlreadyRunning's message.
func (s *Syncer) Sync(ctx context.Context) model.SyncResult {
	res, err := s.TrySync(ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		return model.SyncResult{Errors: []string{err.Error()}}
	}

	return res
}

// TrySync is Sync reporting rejection as ErrAlreadyRunning. Per-file failures
// are collected into the result's Errors and do not stop the pass. Cancelling
// ctx stops before the next file; the ledger is still saved.
func (s *Syncer) TrySync(ctx context.Context) (model.SyncResult, error) {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		logger.Log.Info("sync rejected, already running")
		return model.SyncResult{}, ErrAlreadyRunning
	}
	defer s.state.Store(stateIdle)

	start := time.Now()
	result := s.run(ctx)
	result.DurationMs = time.Since(start).Milliseconds()
	result.Success = len(result.Errors) == 0

	if result.Success {
		logger.Log.Info("sync finished",
			zap.Int("added", result.FilesAdded),
			zap.Int("skipped", result.FilesSkipped),
			zap.Int64("duration_ms", result.DurationMs))
	} else {
		logger.Log.Warn("sync finished with errors",
			zap.Int("added", result.FilesAdded),
			zap.Int("skipped", result.FilesSkipped),
			zap.Strings("errors", result.Errors),
			zap.Int64("duration_ms", result.DurationMs))
	}

	return result, nil
}

// WhileIdle runs fn holding the run gate, so no pass can start until it
// returns. It fails with ErrAlreadyRunning if a pass is active.
func (s *Syncer) WhileIdle(fn func() error) error {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyRunning
	}
	defer s.state.Store(stateIdle)

	return fn()
}

func (s *Syncer) run(ctx context.Context) model.SyncResult {
	result := model.SyncResult{Errors: []string{}}
	remote := s.client()

	files, err := remote.ListFiles(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if len(files) == 0 {
		logger.Log.Debug("no remote files")
		return result
	}

	for _, file := range files {
		if ctx.Err() != nil {
			logger.Log.Info("sync canceled", zap.Error(ctx.Err()))
			break
		}

		out, err := s.processFile(ctx, remote, file)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("sync canceled",
					zap.String("file", file.Name),
					zap.Error(ctx.Err()))
				break
			}

			logger.Log.Error("file sync failed",
				zap.String("file", file.Name),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", file.Name, err.Error()))
			continue
		}

		switch out {
		case outcomeAdded:
			result.FilesAdded++
		case outcomeSkipped:
			result.FilesSkipped++
		}
	}

	// Files already written stay recorded even if ctx was canceled.
	saveCtx := context.WithoutCancel(ctx)

	if err := s.ledger.Save(saveCtx); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	s.ledger.AddSyncRunRecord(result.FilesAdded, result.FilesSkipped, result.Errors)
	s.ledger.Cleanup()

	if err := s.ledger.Save(saveCtx); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	return result
}

func (s *Syncer) processFile(ctx context.Context, remote RemoteClient, file model.RemoteFile) (outcome, error) {
	if s.ledger.IsAlreadySynced(file.SHA) {
		return outcomeSkipped, nil
	}

	content, err := remote.DownloadContent(ctx, file)
	if err != nil {
		return 0, err
	}

	opts := s.Options()

	localPath, err := s.store.HandleDuplicate(file.Name, content, opts.DuplicatePolicy)
	if err != nil {
		return 0, err
	}

	if localPath == "" {
		s.ledger.RecordSync(file, "")
		return outcomeSkipped, nil
	}

	s.ledger.RecordSync(file, localPath)
	logger.Log.Info("synced",
		zap.String("remote", file.Path),
		zap.String("local", localPath))

	s.postProcess(ctx, remote, opts, file, content)

	return outcomeAdded, nil
}

// postProcess tidies the remote inbox. Failures leave the local copy and the
// ledger record in place.
func (s *Syncer) postProcess(ctx context.Context, remote RemoteClient, opts Options, file model.RemoteFile, content string) {
	var err error

	switch {
	case opts.DeleteAfterSync:
		err = remote.DeleteFile(ctx, file)
	case opts.MoveToProcessed:
		err = remote.MoveToProcessed(ctx, file, content)
	default:
		return
	}

	if err != nil {
		logger.Log.Warn("post-processing failed",
			zap.String("file", file.Name),
			zap.Bool("delete", opts.DeleteAfterSync),
			zap.Error(err))
	}
}
