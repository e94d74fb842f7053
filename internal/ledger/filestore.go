package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"inboxsync/internal/model"
	"inboxsync/internal/util"

	"github.com/spf13/afero"
)

const stateKey = "syncState"

// FileStore keeps the ledger under the "syncState" key of a JSON document.
// Other top-level keys in the document are left untouched.
type FileStore struct {
	fs   afero.Fs
	path string
}

func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

func (s *FileStore) readDocument() (map[string]json.RawMessage, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}

	return doc, nil
}

func (s *FileStore) Load(_ context.Context) (*model.SyncState, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}

	raw, ok := doc[stateKey]
	if !ok || string(raw) == "null" {
		return model.NewSyncState(), nil
	}

	state := model.NewSyncState()
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", stateKey, err)
	}

	return state, nil
}

func (s *FileStore) Save(ctx context.Context, state *model.SyncState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := s.readDocument()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", stateKey, err)
	}
	doc[stateKey] = raw

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}

	return util.AtomicWrite(s.fs, s.path, bytes.NewReader(out))
}
