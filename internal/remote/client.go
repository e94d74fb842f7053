package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"inboxsync/internal/config"
	"inboxsync/internal/logger"
	"inboxsync/internal/model"
	"inboxsync/internal/pipeline"
	"inboxsync/internal/retry"

	"github.com/google/go-github/v62/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const rawMediaType = "application/vnd.github.raw+json"

type Options struct {
	Token             string
	Repository        string
	Branch            string
	SourcePath        string
	BaseURL           string
	Extensions        []string
	IgnoreList        []string
	RequestsPerSecond float64
	Burst             int
	Retry             retry.Config

	// HTTPClient is the transport underneath the token source. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client
}

// OptionsFromConfig maps the user configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Token:             cfg.GitHub.Token,
		Repository:        cfg.GitHub.Repository,
		Branch:            cfg.GitHub.Branch,
		SourcePath:        cfg.GitHub.SourcePath,
		BaseURL:           cfg.GitHub.BaseURL,
		Extensions:        cfg.Sync.Extensions,
		IgnoreList:        cfg.Sync.IgnoreList,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Burst:             cfg.GitHub.Burst,
		Retry: retry.Config{
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			MaxRetries:   cfg.Retry.MaxRetries,
			JitterFactor: cfg.Retry.Jitter,
		},
	}
}

// Client reads and tidies the inbox folder of one GitHub repository through
// the Contents API.
type Client struct {
	gh         *github.Client
	repository string
	branch     string
	sourcePath string
	extensions []string
	ignoreList []string
	limiter    *rate.Limiter
	retry      retry.Config
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))
	gh.UserAgent = "inboxsync"

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	retryCfg := opts.Retry
	if retryCfg.MaxRetries == 0 {
		retryCfg = retry.DefaultConfig
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = []string{".md"}
	}

	return &Client{
		gh:         gh,
		repository: opts.Repository,
		branch:     opts.Branch,
		sourcePath: strings.Trim(opts.SourcePath, "/"),
		extensions: extensions,
		ignoreList: opts.IgnoreList,
		limiter:    rate.NewLimiter(limit, max(opts.Burst, 1)),
		retry:      retryCfg,
	}, nil
}

func (c *Client) repoInfo() (string, string, error) {
	if !config.ValidRepository(c.repository) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, c.repository)
	}

	owner, repo, ok := splitRepository(c.repository)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, c.repository)
	}

	return owner, repo, nil
}

// ListFiles returns the files directly under the source path that pass the
// extension and ignore filters. A missing path or a path that is not a
// directory yields no files.
func (c *Client) ListFiles(ctx context.Context) ([]model.RemoteFile, error) {
	owner, repo, err := c.repoInfo()
	if err != nil {
		return nil, err
	}

	opts := &github.RepositoryContentGetOptions{Ref: c.branch}
	entries, err := retry.DoWithData(ctx, c.retry, func() ([]*github.RepositoryContent, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		_, dir, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, c.sourcePath, opts)
		if err != nil {
			return nil, wrapError(err)
		}

		return dir, nil
	})

	if errors.Is(err, ErrNotFound) {
		logger.Log.Debug("source path not found, nothing to sync",
			zap.String("repository", c.repository),
			zap.String("path", c.sourcePath))
		return []model.RemoteFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", c.sourcePath, err)
	}

	files := make([]model.RemoteFile, 0, len(entries))
	for _, e := range entries {
		if e.GetType() != "file" {
			continue
		}

		files = append(files, model.RemoteFile{
			Name:        e.GetName(),
			Path:        e.GetPath(),
			SHA:         e.GetSHA(),
			Size:        e.GetSize(),
			DownloadURL: e.GetDownloadURL(),
		})
	}

	return pipeline.Filter(files, c.extensions, c.ignoreList), nil
}

// DownloadContent fetches the raw bytes of file at the configured branch and
// checks them against file.SHA.
func (c *Client) DownloadContent(ctx context.Context, file model.RemoteFile) (string, error) {
	owner, repo, err := c.repoInfo()
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("repos/%s/%s/contents/%s?ref=%s",
		owner, repo, escapePath(file.Path), url.QueryEscape(c.branch))

	content, err := retry.DoWithData(ctx, c.retry, func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := c.gh.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Accept", rawMediaType)

		var buf bytes.Buffer
		if _, err := c.gh.Do(ctx, req, &buf); err != nil {
			return "", wrapError(err)
		}

		return buf.String(), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", file.Path, err)
	}

	// The branch may have moved since listing.
	if err := pipeline.VerifyBlob(file, []byte(content)); err != nil {
		return "", err
	}

	return content, nil
}

// DeleteFile removes the file at its listed path. GitHub refuses the delete if
// the file's blob hash no longer matches file.SHA.
func (c *Client) DeleteFile(ctx context.Context, file model.RemoteFile) error {
	owner, repo, err := c.repoInfo()
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Synced to vault: %s", file.Name)),
		SHA:     github.String(file.SHA),
		Branch:  github.String(c.branch),
	}

	err = retry.Do(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		_, _, err := c.gh.Repositories.DeleteFile(ctx, owner, repo, file.Path, opts)
		return wrapError(err)
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", file.Path, err)
	}

	logger.Log.Info("remote file deleted",
		zap.String("path", file.Path),
		zap.String("sha", file.SHA))

	return nil
}

// MoveToProcessed writes content next to the source folder under
// ProcessedFolder and then deletes the original. The two commits are not
// atomic: if the delete fails the file exists in both places.
func (c *Client) MoveToProcessed(ctx context.Context, file model.RemoteFile, content string) error {
	owner, repo, err := c.repoInfo()
	if err != nil {
		return err
	}

	newPath := ProcessedPath(c.sourcePath, file.Name)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Moved to processed: %s", file.Name)),
		Content: []byte(content),
		Branch:  github.String(c.branch),
	}

	err = retry.Do(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		_, _, err := c.gh.Repositories.CreateFile(ctx, owner, repo, newPath, opts)
		return wrapError(err)
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", newPath, err)
	}

	logger.Log.Info("remote file copied to processed",
		zap.String("src", file.Path),
		zap.String("dst", newPath))

	return c.DeleteFile(ctx, file)
}

// ValidateToken returns the login the token authenticates as. It is not
// retried.
func (c *Client) ValidateToken(ctx context.Context) (string, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		err = wrapError(err)
		if errors.Is(err, ErrUnauthorized) {
			return "", fmt.Errorf("GitHub token is invalid: %w", err)
		}
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	return user.GetLogin(), nil
}

// ValidateRepository returns the full name of the configured repository. It
// is not retried.
func (c *Client) ValidateRepository(ctx context.Context) (string, error) {
	owner, repo, err := c.repoInfo()
	if err != nil {
		return "", err
	}

	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		err = wrapError(err)
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("repository not found or not accessible: %w", err)
		}
		return "", fmt.Errorf("repository validation failed: %w", err)
	}

	return r.GetFullName(), nil
}

func (c *Client) TestConnection(ctx context.Context) model.ConnectionResult {
	user, err := c.ValidateToken(ctx)
	if err != nil {
		return model.ConnectionResult{Error: err.Error()}
	}

	fullName, err := c.ValidateRepository(ctx)
	if err != nil {
		return model.ConnectionResult{Error: err.Error(), User: user}
	}

	return model.ConnectionResult{
		Success:    true,
		User:       user,
		Repository: fullName,
	}
}
