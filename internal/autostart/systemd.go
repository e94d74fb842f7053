package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"inboxsync/internal/util"

	"github.com/spf13/afero"
)

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=GitHub inbox to vault sync daemon
After=network-online.target
Wants=network-online.target

[Service]
ExecStart={{.ExecPath}} watch
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

// Systemd installs a systemd user unit.
type Systemd struct {
	// Dir overrides ~/.config/systemd/user.
	Dir string
	run runner
}

func RenderUnit(execPath string) (string, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, map[string]string{"ExecPath": execPath}); err != nil {
		return "", fmt.Errorf("failed to render unit: %w", err)
	}

	return buf.String(), nil
}

func (s *Systemd) unitPath() (string, error) {
	dir := s.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "systemd", "user")
	}

	return filepath.Join(dir, serviceName+".service"), nil
}

func (s *Systemd) Install(execPath string) error {
	path, err := s.unitPath()
	if err != nil {
		return err
	}

	unit, err := RenderUnit(execPath)
	if err != nil {
		return err
	}

	if err := util.AtomicWrite(afero.NewOsFs(), path, bytes.NewReader([]byte(unit))); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	cmds := [][]string{
		{"systemctl", "--user", "daemon-reload"},
		{"systemctl", "--user", "enable", serviceName + ".service"},
		{"systemctl", "--user", "start", serviceName + ".service"},
	}

	for _, args := range cmds {
		if out, err := s.run(args[0], args[1:]...); err != nil {
			return fmt.Errorf("failed to run %v: %w\n%s", args, err, out)
		}
	}

	return nil
}

func (s *Systemd) Uninstall() error {
	cmds := [][]string{
		{"systemctl", "--user", "stop", serviceName + ".service"},
		{"systemctl", "--user", "disable", serviceName + ".service"},
	}

	// the unit may already be stopped or disabled
	for _, args := range cmds {
		_, _ = s.run(args[0], args[1:]...)
	}

	path, err := s.unitPath()
	if err != nil {
		return err
	}

	return util.RemoveIfExists(afero.NewOsFs(), path)
}

func (s *Systemd) IsInstalled() (bool, error) {
	path, err := s.unitPath()
	if err != nil {
		return false, err
	}

	return afero.Exists(afero.NewOsFs(), path)
}
