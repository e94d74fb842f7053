package model

type DuplicatePolicy string

const (
	DuplicateSkip      DuplicatePolicy = "skip"
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	DuplicateRename    DuplicatePolicy = "rename"
)

type SyncResult struct {
	Success      bool     `json:"success"`
	FilesAdded   int      `json:"files_added"`
	FilesSkipped int      `json:"files_skipped"`
	Errors       []string `json:"errors"`
	DurationMs   int64    `json:"duration_ms"`
}
