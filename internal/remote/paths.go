package remote

import (
	"net/url"
	"strings"
)

const ProcessedFolder = "processed"

// ProcessedPath replaces the last segment of sourcePath with the processed
// folder and appends name. A root-level source yields "processed/<name>".
func ProcessedPath(sourcePath, name string) string {
	parts := strings.Split(strings.Trim(sourcePath, "/"), "/")
	parts = parts[:len(parts)-1]
	parts = append(parts, ProcessedFolder, name)

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, "/")
}

func splitRepository(repository string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(strings.TrimSpace(repository), "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}

	return owner, repo, true
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return strings.Join(parts, "/")
}
