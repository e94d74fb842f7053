package pipeline

import (
	"path"
	"strings"

	"inboxsync/internal/model"
)

// Filter keeps the files whose name ends in one of extensions, compared
// case-insensitively, and that match none of the ignore patterns.
func Filter(files []model.RemoteFile, extensions, ignoreList []string) []model.RemoteFile {
	out := make([]model.RemoteFile, 0, len(files))

	for _, f := range files {
		if !HasExtension(f.Name, extensions) {
			continue
		}

		if shouldIgnore(f.Path, ignoreList) {
			continue
		}

		out = append(out, f)
	}

	return out
}

func HasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)

	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}

	return false
}

func shouldIgnore(p string, ignoreList []string) bool {
	parts := strings.Split(strings.Trim(p, "/"), "/")

	for _, part := range parts {
		for _, pattern := range ignoreList {
			matched, err := path.Match(pattern, part)
			if err == nil && matched {
				return true
			}
		}
	}

	return false
}
