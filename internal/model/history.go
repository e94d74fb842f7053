package model

import (
	"time"

	"gorm.io/gorm"
)

// SyncedFile is the sqlite row behind one ledger entry.
type SyncedFile struct {
	Hash       string    `gorm:"primaryKey"`
	Filename   string    `gorm:"not null"`
	RemotePath string    `gorm:"not null"`
	LocalPath  string    `gorm:"not null;default:''"`
	SyncedAt   time.Time `gorm:"not null;index"`
}

// History is the sqlite row behind one run record. Errors holds a JSON array.
type History struct {
	gorm.Model
	Position     int       `gorm:"not null;index"`
	FilesAdded   int       `gorm:"not null"`
	FilesSkipped int       `gorm:"not null"`
	Errors       string    `gorm:"not null;default:'[]'"`
	SyncedAt     time.Time `gorm:"not null"`
}

func (History) TableName() string {
	return "sync_runs"
}

// SyncMeta keeps scalar ledger fields. There is only ever one row.
type SyncMeta struct {
	ID           uint `gorm:"primaryKey"`
	LastSyncTime *time.Time
}

func (SyncMeta) TableName() string {
	return "sync_meta"
}
