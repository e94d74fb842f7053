package model

import "time"

type RunStatus string

const (
	RunStatusIdle    RunStatus = "IDLE"
	RunStatusRunning RunStatus = "RUNNING"
)

type TriggerSource string

const (
	TriggerManual   TriggerSource = "manual"
	TriggerStartup  TriggerSource = "startup"
	TriggerInterval TriggerSource = "interval"
)

type RunSnapshot struct {
	Status      RunStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	Runs        int         `json:"runs"`
	Failed      int         `json:"failed"`
	Rejected    int         `json:"rejected"`
	LastTrigger string      `json:"last_trigger,omitempty"`
	LastRun     *time.Time  `json:"last_run"`
	LastResult  *SyncResult `json:"last_result,omitempty"`
	LastSync    *time.Time  `json:"last_sync"`
	SyncedFiles int         `json:"synced_files"`
}
