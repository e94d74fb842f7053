package model

import "time"

// SyncedFileRecord is stored under the content hash of the remote file. An
// empty LocalPath means the file was skipped by the duplicate policy.
type SyncedFileRecord struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	SyncedAt  time.Time `json:"syncedAt"`
	LocalPath string    `json:"localPath"`
}

type SyncRunRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	FilesAdded   int       `json:"filesAdded"`
	FilesSkipped int       `json:"filesSkipped"`
	Errors       []string  `json:"errors"`
}

type SyncState struct {
	LastSyncTime *time.Time                  `json:"lastSyncTime"`
	SyncedFiles  map[string]SyncedFileRecord `json:"syncedFiles"`
	SyncHistory  []SyncRunRecord             `json:"syncHistory"`
}

func NewSyncState() *SyncState {
	return &SyncState{
		SyncedFiles: make(map[string]SyncedFileRecord),
		SyncHistory: []SyncRunRecord{},
	}
}

// Clone returns a deep copy so callers can read state outside the ledger lock.
func (s *SyncState) Clone() *SyncState {
	out := &SyncState{
		SyncedFiles: make(map[string]SyncedFileRecord, len(s.SyncedFiles)),
		SyncHistory: make([]SyncRunRecord, 0, len(s.SyncHistory)),
	}

	if s.LastSyncTime != nil {
		out.LastSyncTime = new(*s.LastSyncTime)
	}

	for hash, rec := range s.SyncedFiles {
		out.SyncedFiles[hash] = rec
	}

	for _, run := range s.SyncHistory {
		run.Errors = append([]string{}, run.Errors...)
		out.SyncHistory = append(out.SyncHistory, run)
	}

	return out
}
