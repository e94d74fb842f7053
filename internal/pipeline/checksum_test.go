package pipeline

import (
	"testing"

	"inboxsync/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestBlobSHA(t *testing.T) {
	// values from `git hash-object`
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", BlobSHA(nil))
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", BlobSHA([]byte("hello\n")))
}

func TestVerifyBlob(t *testing.T) {
	file := model.RemoteFile{Path: "inbox/a.md", SHA: "ce013625030ba8dba906f756967f9e9ca394464a"}

	assert.NoError(t, VerifyBlob(file, []byte("hello\n")))
	assert.ErrorIs(t, VerifyBlob(file, []byte("hello")), ErrChecksumMismatch)

	file.SHA = "CE013625030BA8DBA906F756967F9E9CA394464A"
	assert.NoError(t, VerifyBlob(file, []byte("hello\n")))

	assert.NoError(t, VerifyBlob(model.RemoteFile{Path: "x"}, []byte("anything")))
}
