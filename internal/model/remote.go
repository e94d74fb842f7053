package model

// RemoteFile is one candidate file in the remote source folder at the time it
// was listed. SHA is the git blob hash of the content and is the file's
// identity for dedup purposes.
type RemoteFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int    `json:"size"`
	DownloadURL string `json:"download_url"`
}

type ConnectionResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	User       string `json:"user,omitempty"`
	Repository string `json:"repository,omitempty"`
}
