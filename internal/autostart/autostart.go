package autostart

import (
	"os/exec"
	"runtime"
)

const serviceName = "inboxsync"

// AutoStarter registers the daemon to run at login.
type AutoStarter interface {
	Install(execPath string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

// runner executes an external command and returns its combined output.
type runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &TaskScheduler{run: execRunner}
	case "linux":
		return &Systemd{run: execRunner}
	default:
		return Unsupported{}
	}
}

type Unsupported struct{}

func (Unsupported) Install(string) error       { return ErrUnsupported }
func (Unsupported) Uninstall() error           { return ErrUnsupported }
func (Unsupported) IsInstalled() (bool, error) { return false, nil }
