package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls [][]string
	fail  map[string]bool
}

func (r *recorder) run(name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	r.calls = append(r.calls, call)

	if r.fail[strings.Join(call, " ")] {
		return []byte("boom"), errors.New("exit status 1")
	}
	return nil, nil
}

func TestRenderUnit(t *testing.T) {
	unit, err := RenderUnit("/usr/local/bin/inboxsync")
	require.NoError(t, err)

	assert.Contains(t, unit, "[Service]\nExecStart=/usr/local/bin/inboxsync watch\n")
	assert.Contains(t, unit, "WantedBy=default.target")
}

func TestSystemdInstallUninstall(t *testing.T) {
	rec := &recorder{}
	s := &Systemd{Dir: t.TempDir(), run: rec.run}

	installed, err := s.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, s.Install("/bin/inboxsync"))

	data, err := os.ReadFile(filepath.Join(s.Dir, "inboxsync.service"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ExecStart=/bin/inboxsync watch")

	installed, err = s.IsInstalled()
	require.NoError(t, err)
	assert.True(t, installed)

	assert.Equal(t, [][]string{
		{"systemctl", "--user", "daemon-reload"},
		{"systemctl", "--user", "enable", "inboxsync.service"},
		{"systemctl", "--user", "start", "inboxsync.service"},
	}, rec.calls)

	require.NoError(t, s.Uninstall())
	installed, err = s.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestSystemdInstallReportsCommandFailure(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"systemctl --user enable inboxsync.service": true}}
	s := &Systemd{Dir: t.TempDir(), run: rec.run}

	err := s.Install("/bin/inboxsync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, rec.calls, 2)
}

func TestSystemdUninstallIgnoresStopFailure(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"systemctl --user stop inboxsync.service": true}}
	s := &Systemd{Dir: t.TempDir(), run: rec.run}

	assert.NoError(t, s.Uninstall())
}

func TestTaskScheduler(t *testing.T) {
	rec := &recorder{}
	w := &TaskScheduler{run: rec.run}

	require.NoError(t, w.Install(`C:\bin\inboxsync.exe`))
	assert.Equal(t, []string{
		"schtasks", "/Create", "/TN", "InboxSyncDaemon",
		"/TR", `"C:\bin\inboxsync.exe" watch`, "/SC", "ONLOGON", "/F",
	}, rec.calls[0])

	installed, err := w.IsInstalled()
	require.NoError(t, err)
	assert.True(t, installed)

	rec.fail = map[string]bool{"schtasks /Query /TN InboxSyncDaemon": true}
	installed, err = w.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)
}
