package store

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"inboxsync/internal/logger"
	"inboxsync/internal/model"
	"inboxsync/internal/vault"

	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02T15-04-05"

// Store writes synced notes into the target folder of a vault.
type Store struct {
	mu         sync.RWMutex
	vault      vault.Vault
	targetPath string
	now        func() time.Time
}

func New(v vault.Vault, targetPath string) *Store {
	return &Store{
		vault:      v,
		targetPath: vault.Normalize(targetPath),
		now:        time.Now,
	}
}

func (s *Store) SetTargetPath(targetPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetPath = vault.Normalize(targetPath)
}

func (s *Store) TargetPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targetPath
}

func (s *Store) filePath(filename string) string {
	target := s.TargetPath()
	if target == "" {
		return filename
	}

	return path.Join(target, filename)
}

// EnsureTargetFolder creates the target folder if missing. An empty target
// means the vault root.
func (s *Store) EnsureTargetFolder() error {
	target := s.TargetPath()
	if target == "" {
		return nil
	}

	if err := s.vault.EnsureFolder(target); err != nil {
		return fmt.Errorf("failed to ensure target folder: %w", err)
	}

	return nil
}

func (s *Store) FileExists(filename string) (bool, error) {
	return s.vault.Exists(s.filePath(filename))
}

func (s *Store) CreateFile(filename, content string) (string, error) {
	if err := s.EnsureTargetFolder(); err != nil {
		return "", err
	}

	p := s.filePath(filename)
	if err := s.vault.Create(p, content); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", p, err)
	}

	return p, nil
}

// ReadFile returns the content and false when the file does not exist.
func (s *Store) ReadFile(filename string) (string, bool, error) {
	content, err := s.vault.Read(s.filePath(filename))
	if errors.Is(err, vault.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return content, true, nil
}

// DeleteFile reports whether a file was removed.
func (s *Store) DeleteFile(filename string) (bool, error) {
	err := s.vault.Delete(s.filePath(filename))
	if errors.Is(err, vault.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// HandleDuplicate writes content under filename according to policy and
// returns the vault path written, or "" when nothing was written.
func (s *Store) HandleDuplicate(filename, content string, policy model.DuplicatePolicy) (string, error) {
	if err := s.EnsureTargetFolder(); err != nil {
		return "", err
	}

	p := s.filePath(filename)
	exists, err := s.vault.Exists(p)
	if err != nil {
		return "", err
	}

	if !exists {
		if err := s.vault.Create(p, content); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", p, err)
		}
		return p, nil
	}

	switch policy {
	case model.DuplicateOverwrite:
		if err := s.vault.Modify(p, content); err != nil {
			return "", fmt.Errorf("failed to overwrite %s: %w", p, err)
		}
		return p, nil

	case model.DuplicateRename:
		renamed := s.filePath(TimestampedName(filename, s.now()))
		if err := s.vault.Create(renamed, content); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", renamed, err)
		}
		return renamed, nil

	case model.DuplicateSkip:
		return "", nil

	default:
		logger.Log.Warn("unknown duplicate policy, skipping",
			zap.String("policy", string(policy)),
			zap.String("file", p))
		return "", nil
	}
}

// TimestampedName inserts "-<UTC timestamp>" before the last extension of
// filename, or appends it when there is none.
func TimestampedName(filename string, t time.Time) string {
	stamp := t.UTC().Format(timestampLayout)

	i := strings.LastIndex(filename, ".")
	if i == -1 {
		return filename + "-" + stamp
	}

	return filename[:i] + "-" + stamp + filename[i:]
}
