package store

import (
	"testing"
	"time"

	"inboxsync/internal/model"
	"inboxsync/internal/vault"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, target string) (*Store, *vault.FsVault) {
	t.Helper()

	v := vault.New(afero.NewMemMapFs())
	s := New(v, target)
	s.now = func() time.Time { return fixedNow }

	return s, v
}

func TestTimestampedName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"note.md", "note-2024-01-15T10-30-00.md"},
		{"note", "note-2024-01-15T10-30-00"},
		{"a.b.md", "a.b-2024-01-15T10-30-00.md"},
		{".hidden", "-2024-01-15T10-30-00.hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TimestampedName(tt.in, fixedNow))
		})
	}
}

func TestTimestampedNameUsesUTC(t *testing.T) {
	local := fixedNow.In(time.FixedZone("KST", 9*60*60))
	assert.Equal(t, "note-2024-01-15T10-30-00.md", TimestampedName("note.md", local))
}

func TestHandleDuplicateNewFile(t *testing.T) {
	for _, policy := range []model.DuplicatePolicy{model.DuplicateSkip, model.DuplicateOverwrite, model.DuplicateRename} {
		t.Run(string(policy), func(t *testing.T) {
			s, v := newTestStore(t, "inbox")

			p, err := s.HandleDuplicate("note.md", "hello", policy)
			require.NoError(t, err)
			assert.Equal(t, "inbox/note.md", p)

			content, err := v.Read(p)
			require.NoError(t, err)
			assert.Equal(t, "hello", content)
		})
	}
}

func TestHandleDuplicateSkip(t *testing.T) {
	s, v := newTestStore(t, "inbox")
	require.NoError(t, v.Create("inbox/note.md", "old"))

	p, err := s.HandleDuplicate("note.md", "new", model.DuplicateSkip)
	require.NoError(t, err)
	assert.Empty(t, p)

	content, err := v.Read("inbox/note.md")
	require.NoError(t, err)
	assert.Equal(t, "old", content)
}

func TestHandleDuplicateOverwrite(t *testing.T) {
	s, v := newTestStore(t, "inbox")
	require.NoError(t, v.Create("inbox/note.md", "old"))

	p, err := s.HandleDuplicate("note.md", "new", model.DuplicateOverwrite)
	require.NoError(t, err)
	assert.Equal(t, "inbox/note.md", p)

	content, err := v.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "new", content)
}

func TestHandleDuplicateRename(t *testing.T) {
	s, v := newTestStore(t, "inbox")
	require.NoError(t, v.Create("inbox/note.md", "old"))

	p, err := s.HandleDuplicate("note.md", "new", model.DuplicateRename)
	require.NoError(t, err)
	assert.Equal(t, "inbox/note-2024-01-15T10-30-00.md", p)

	original, err := v.Read("inbox/note.md")
	require.NoError(t, err)
	assert.Equal(t, "old", original)

	renamed, err := v.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "new", renamed)
}

func TestHandleDuplicateRenameCollision(t *testing.T) {
	s, v := newTestStore(t, "inbox")
	require.NoError(t, v.Create("inbox/note.md", "old"))
	require.NoError(t, v.Create("inbox/note-2024-01-15T10-30-00.md", "older"))

	_, err := s.HandleDuplicate("note.md", "new", model.DuplicateRename)
	assert.ErrorIs(t, err, vault.ErrExists)
}

func TestHandleDuplicateUnknownPolicySkips(t *testing.T) {
	s, v := newTestStore(t, "")
	require.NoError(t, v.Create("note.md", "old"))

	p, err := s.HandleDuplicate("note.md", "new", model.DuplicatePolicy("merge"))
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestEmptyTargetIsVaultRoot(t *testing.T) {
	s, v := newTestStore(t, "")

	p, err := s.CreateFile("note.md", "x")
	require.NoError(t, err)
	assert.Equal(t, "note.md", p)

	ok, err := v.Exists("note.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureTargetFolderBeforeWrite(t *testing.T) {
	s, v := newTestStore(t, "notes/inbox")

	_, err := s.HandleDuplicate("a.md", "x", model.DuplicateSkip)
	require.NoError(t, err)

	files, err := v.List("notes/inbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/inbox/a.md"}, files)
}

func TestReadDeleteExists(t *testing.T) {
	s, _ := newTestStore(t, "inbox")

	_, ok, err := s.ReadFile("a.md")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CreateFile("a.md", "body")
	require.NoError(t, err)

	exists, err := s.FileExists("a.md")
	require.NoError(t, err)
	assert.True(t, exists)

	content, ok, err := s.ReadFile("a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "body", content)

	removed, err := s.DeleteFile("a.md")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteFile("a.md")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSetTargetPath(t *testing.T) {
	s, _ := newTestStore(t, "inbox")
	s.SetTargetPath("/notes/new/")

	assert.Equal(t, "notes/new", s.TargetPath())

	p, err := s.CreateFile("a.md", "x")
	require.NoError(t, err)
	assert.Equal(t, "notes/new/a.md", p)
}
