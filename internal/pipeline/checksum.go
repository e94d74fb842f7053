package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inboxsync/internal/model"
)

var ErrChecksumMismatch = errors.New("content does not match listed sha")

// BlobSHA returns the git blob hash of content, the value GitHub reports as
// a file's sha.
func BlobSHA(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)

	return hex.EncodeToString(h.Sum(nil))
}

// VerifyBlob checks downloaded content against the sha the file was listed
// with. A file without a sha is not checked.
func VerifyBlob(file model.RemoteFile, content []byte) error {
	if file.SHA == "" {
		return nil
	}

	if got := BlobSHA(content); !strings.EqualFold(got, file.SHA) {
		return fmt.Errorf("%w: %s listed as %s, got %s", ErrChecksumMismatch, file.Path, file.SHA, got)
	}

	return nil
}
