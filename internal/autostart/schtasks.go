package autostart

import (
	"fmt"
)

const taskName = "InboxSyncDaemon"

// TaskScheduler registers a Windows logon task.
type TaskScheduler struct {
	run runner
}

func (w *TaskScheduler) Install(execPath string) error {
	out, err := w.run("schtasks", "/Create",
		"/TN", taskName,
		"/TR", fmt.Sprintf(`"%s" watch`, execPath),
		"/SC", "ONLOGON",
		"/F")
	if err != nil {
		return fmt.Errorf("failed to register task: %w\n%s", err, out)
	}

	return nil
}

func (w *TaskScheduler) Uninstall() error {
	out, err := w.run("schtasks", "/Delete", "/TN", taskName, "/F")
	if err != nil {
		return fmt.Errorf("failed to remove task: %w\n%s", err, out)
	}

	return nil
}

// IsInstalled treats any query failure as "not installed".
func (w *TaskScheduler) IsInstalled() (bool, error) {
	if _, err := w.run("schtasks", "/Query", "/TN", taskName); err != nil {
		return false, nil
	}

	return true, nil
}
