package daemon

import (
	"context"
	"fmt"

	"inboxsync/internal/config"
	"inboxsync/internal/db"
	"inboxsync/internal/ledger"
	"inboxsync/internal/remote"
	"inboxsync/internal/repository"
	"inboxsync/internal/store"
	"inboxsync/internal/syncer"
	"inboxsync/internal/vault"

	"github.com/spf13/afero"
)

// OpenLedger loads the ledger from the configured backend. The returned
// close func releases the backend.
func OpenLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, func(), error) {
	var (
		backend ledger.Store
		closeFn = func() {}
	)

	switch cfg.State.Backend {
	case config.BackendJSON:
		backend = ledger.NewFileStore(afero.NewOsFs(), cfg.State.JSONPath)
	default:
		if err := db.Init(cfg.State.DBPath); err != nil {
			return nil, nil, err
		}
		backend = repository.NewLedgerRepository()
		closeFn = func() { _ = db.Close() }
	}

	l := ledger.New(backend, ledger.Options{
		MaxHistory:    cfg.State.MaxHistory,
		RetentionDays: cfg.State.RetentionDays,
	})
	if err := l.Load(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}

	return l, closeFn, nil
}

// NewFromConfig wires the ledger, vault, remote client and syncer described
// by cfg into a Manager.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Manager, func(), error) {
	l, closeFn, err := OpenLedger(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	newRemote := func(cfg *config.Config) (Remote, error) {
		c, err := remote.NewClient(ctx, remote.OptionsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	client, err := newRemote(cfg)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create github client: %w", err)
	}

	st := store.New(vault.NewOs(cfg.VaultPath), cfg.TargetPath)
	s := syncer.New(client, st, l, syncer.OptionsFromConfig(cfg))

	m := NewManager(cfg, Deps{
		Syncer:        s,
		Ledger:        l,
		Remote:        client,
		SetTargetPath: st.SetTargetPath,
		NewRemote:     newRemote,
	})

	return m, closeFn, nil
}
