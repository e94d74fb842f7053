package vault

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"inboxsync/internal/util"

	"github.com/spf13/afero"
)

var (
	ErrExists   = errors.New("file already exists")
	ErrNotExist = errors.New("file does not exist")
)

// Vault is the note store files are materialized into. Paths are relative to
// the vault root and use forward slashes.
type Vault interface {
	Exists(p string) (bool, error)
	Create(p, content string) error
	Modify(p, content string) error
	Read(p string) (string, error)
	Delete(p string) error
	EnsureFolder(p string) error
	List(folder string) ([]string, error)
}

type FsVault struct {
	fs afero.Fs
}

func New(fs afero.Fs) *FsVault {
	return &FsVault{fs: fs}
}

// NewOs roots a vault at dir on the local disk.
func NewOs(dir string) *FsVault {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

func Normalize(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// fsPath anchors a vault path at the filesystem root.
func fsPath(p string) string {
	return "/" + Normalize(p)
}

func (v *FsVault) Exists(p string) (bool, error) {
	ok, err := afero.Exists(v.fs, fsPath(p))
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}

	return ok, nil
}

func (v *FsVault) Create(p, content string) error {
	p = Normalize(p)

	ok, err := v.Exists(p)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrExists, p)
	}

	return util.AtomicWrite(v.fs, fsPath(p), strings.NewReader(content))
}

func (v *FsVault) Modify(p, content string) error {
	p = Normalize(p)

	ok, err := v.Exists(p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotExist, p)
	}

	return util.AtomicWrite(v.fs, fsPath(p), strings.NewReader(content))
}

func (v *FsVault) Read(p string) (string, error) {
	p = Normalize(p)

	data, err := afero.ReadFile(v.fs, fsPath(p))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}

	return string(data), nil
}

func (v *FsVault) Delete(p string) error {
	p = Normalize(p)

	ok, err := v.Exists(p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotExist, p)
	}

	return util.RemoveIfExists(v.fs, fsPath(p))
}

func (v *FsVault) EnsureFolder(p string) error {
	p = Normalize(p)
	if p == "" {
		return nil
	}

	if err := v.fs.MkdirAll(fsPath(p), 0755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", p, err)
	}

	return nil
}

// List returns the vault paths of the regular files directly inside folder,
// sorted. A missing folder lists as empty.
func (v *FsVault) List(folder string) ([]string, error) {
	folder = Normalize(folder)

	infos, err := afero.ReadDir(v.fs, fsPath(folder))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	files := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || util.IsTemp(info.Name()) {
			continue
		}
		files = append(files, path.Join(folder, info.Name()))
	}
	sort.Strings(files)

	return files, nil
}
