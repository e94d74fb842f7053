package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"inboxsync/internal/db"
	"inboxsync/internal/model"

	"gorm.io/gorm"
)

const metaID = 1

// LedgerRepository persists ledger state in the sqlite tables synced_files,
// sync_runs and sync_meta.
type LedgerRepository struct{}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) Load(ctx context.Context) (*model.SyncState, error) {
	state := model.NewSyncState()
	tx := db.DB.WithContext(ctx)

	var files []model.SyncedFile
	if err := tx.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to load synced files: %w", err)
	}

	for _, f := range files {
		state.SyncedFiles[f.Hash] = model.SyncedFileRecord{
			Filename:  f.Filename,
			Path:      f.RemotePath,
			SyncedAt:  f.SyncedAt,
			LocalPath: f.LocalPath,
		}
	}

	var runs []model.History
	if err := tx.Order("position asc").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load sync runs: %w", err)
	}

	for _, h := range runs {
		errs := []string{}
		if h.Errors != "" {
			if err := json.Unmarshal([]byte(h.Errors), &errs); err != nil {
				return nil, fmt.Errorf("failed to decode errors of run %d: %w", h.ID, err)
			}
		}

		state.SyncHistory = append(state.SyncHistory, model.SyncRunRecord{
			Timestamp:    h.SyncedAt,
			FilesAdded:   h.FilesAdded,
			FilesSkipped: h.FilesSkipped,
			Errors:       errs,
		})
	}

	var meta model.SyncMeta
	err := tx.First(&meta, metaID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load sync meta: %w", err)
	}
	state.LastSyncTime = meta.LastSyncTime

	return state, nil
}

// Save replaces everything persisted with state in a single transaction.
func (r *LedgerRepository) Save(ctx context.Context, state *model.SyncState) error {
	files := make([]model.SyncedFile, 0, len(state.SyncedFiles))
	for hash, rec := range state.SyncedFiles {
		files = append(files, model.SyncedFile{
			Hash:       hash,
			Filename:   rec.Filename,
			RemotePath: rec.Path,
			LocalPath:  rec.LocalPath,
			SyncedAt:   rec.SyncedAt,
		})
	}

	runs := make([]model.History, 0, len(state.SyncHistory))
	for i, run := range state.SyncHistory {
		errs := run.Errors
		if errs == nil {
			errs = []string{}
		}

		encoded, err := json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("failed to encode run errors: %w", err)
		}

		runs = append(runs, model.History{
			Position:     i,
			FilesAdded:   run.FilesAdded,
			FilesSkipped: run.FilesSkipped,
			Errors:       string(encoded),
			SyncedAt:     run.Timestamp,
		})
	}

	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.SyncedFile{}).Error; err != nil {
			return fmt.Errorf("failed to clear synced files: %w", err)
		}

		if err := tx.Unscoped().Where("1 = 1").Delete(&model.History{}).Error; err != nil {
			return fmt.Errorf("failed to clear sync runs: %w", err)
		}

		if len(files) > 0 {
			if err := tx.CreateInBatches(files, 100).Error; err != nil {
				return fmt.Errorf("failed to save synced files: %w", err)
			}
		}

		if len(runs) > 0 {
			if err := tx.CreateInBatches(runs, 100).Error; err != nil {
				return fmt.Errorf("failed to save sync runs: %w", err)
			}
		}

		meta := model.SyncMeta{ID: metaID, LastSyncTime: state.LastSyncTime}
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("failed to save sync meta: %w", err)
		}

		return nil
	})
}
