package daemon

import (
	"fmt"
	"strings"

	"inboxsync/internal/logger"
	"inboxsync/internal/model"

	"go.uber.org/zap"
)

type Notifier interface {
	Notify(msg string)
}

// LogNotifier surfaces user-facing messages in the daemon log.
type LogNotifier struct{}

func (LogNotifier) Notify(msg string) {
	logger.Log.Info("notification", zap.String("message", msg))
}

func successMessage(added int) string {
	if added > 0 {
		return fmt.Sprintf("Synced %d new notes from GitHub", added)
	}
	return "No new notes to sync"
}

func failureMessage(result model.SyncResult) string {
	return "Sync failed: " + strings.Join(result.Errors, ", ")
}

const inProgressMessage = "Sync already in progress"
