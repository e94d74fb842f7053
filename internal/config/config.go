package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"inboxsync/internal/model"
	"inboxsync/internal/pipeline"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

var repositoryPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

type Config struct {
	GitHub        GitHubConfig `mapstructure:"github"`
	VaultPath     string       `mapstructure:"vault_path"`
	TargetPath    string       `mapstructure:"target_path"`
	Sync          SyncConfig   `mapstructure:"sync"`
	State         StateConfig  `mapstructure:"state"`
	Retry         RetryConfig  `mapstructure:"retry"`
	Notifications bool         `mapstructure:"notifications"`
	DaemonPort    int          `mapstructure:"daemon_port"`
}

type GitHubConfig struct {
	Token             string  `mapstructure:"token"`
	Repository        string  `mapstructure:"repository"`
	Branch            string  `mapstructure:"branch"`
	SourcePath        string  `mapstructure:"source_path"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SyncConfig struct {
	OnStartup         bool                  `mapstructure:"on_startup"`
	StartupDelay      int                   `mapstructure:"startup_delay"`
	Auto              bool                  `mapstructure:"auto"`
	Interval          int                   `mapstructure:"interval"`
	DuplicateHandling model.DuplicatePolicy `mapstructure:"duplicate_handling"`
	DeleteAfterSync   bool                  `mapstructure:"delete_after_sync"`
	MoveToProcessed   bool                  `mapstructure:"move_to_processed"`
	Extensions        []string              `mapstructure:"extensions"`
	IgnoreList        []string              `mapstructure:"ignore_list"`
}

type StateConfig struct {
	Backend       string `mapstructure:"backend"`
	DBPath        string `mapstructure:"db_path"`
	JSONPath      string `mapstructure:"json_path"`
	MaxHistory    int    `mapstructure:"max_history"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Jitter       float64       `mapstructure:"jitter"`
}

var Default = Config{
	GitHub: GitHubConfig{
		Branch:            "main",
		SourcePath:        "inbox",
		BaseURL:           "https://api.github.com/",
		RequestsPerSecond: 10,
		Burst:             5,
	},
	TargetPath: "inbox",
	Sync: SyncConfig{
		OnStartup:         true,
		StartupDelay:      3,
		Auto:              true,
		Interval:          5,
		DuplicateHandling: model.DuplicateSkip,
		DeleteAfterSync:   false,
		MoveToProcessed:   true,
		Extensions:        []string{".md"},
		IgnoreList:        []string{".DS_Store", "*.tmp", "*.swp"},
	},
	State: StateConfig{
		Backend:       BackendSQLite,
		DBPath:        "inboxsync.db",
		JSONPath:      "data.json",
		MaxHistory:    100,
		RetentionDays: 90,
	},
	Retry: RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		MaxRetries:   5,
		Jitter:       0.1,
	},
	Notifications: true,
	DaemonPort:    9001,
}

var (
	mu sync.Mutex
	v  *viper.Viper
)

// Dir is the directory holding config.yaml and the default state files.
func Dir() (string, error) {
	if dir := os.Getenv("INBOXSYNC_HOME"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	return filepath.Join(home, ".inboxsync"), nil
}

func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	return LoadFrom(dir)
}

func LoadFrom(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	nv := viper.New()
	nv.SetConfigName("config")
	nv.SetConfigType("yaml")
	nv.AddConfigPath(configDir)

	setDefaults(nv)

	nv.SetEnvPrefix("INBOXSYNC")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(nv, configDir)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	v = nv
	mu.Unlock()

	return cfg, nil
}

// reloadDelay collapses the burst of events an editor save produces.
var reloadDelay = 250 * time.Millisecond

// reload is one decoded config file change.
type reload struct {
	name string
	cfg  *Config
	err  error
}

// Watch reloads the config file on change and hands the new config to fn.
// Invalid edits are reported through onErr and the previous config stays in
// effect.
func Watch(fn func(*Config), onErr func(error)) {
	mu.Lock()
	cur := v
	mu.Unlock()

	if cur == nil || cur.ConfigFileUsed() == "" {
		return
	}

	configDir := filepath.Dir(cur.ConfigFileUsed())
	reloads := make(chan reload)

	go func() {
		for r := range pipeline.Debounce(reloads, reloadDelay) {
			err := r.err
			if err == nil {
				err = r.cfg.Validate()
			}
			if err != nil {
				onErr(fmt.Errorf("failed to reload %s: %w", r.name, err))
				continue
			}

			fn(r.cfg)
		}
	}()

	// Runs on viper's watcher goroutine, the only one touching cur after
	// WatchConfig.
	cur.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(cur, configDir)
		reloads <- reload{name: e.Name, cfg: cfg, err: err}
	})
	cur.WatchConfig()
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("github.branch", Default.GitHub.Branch)
	nv.SetDefault("github.source_path", Default.GitHub.SourcePath)
	nv.SetDefault("github.base_url", Default.GitHub.BaseURL)
	nv.SetDefault("github.requests_per_second", Default.GitHub.RequestsPerSecond)
	nv.SetDefault("github.burst", Default.GitHub.Burst)
	nv.SetDefault("github.token", "")
	nv.SetDefault("github.repository", "")
	nv.SetDefault("vault_path", "")
	nv.SetDefault("target_path", Default.TargetPath)

	nv.SetDefault("sync.on_startup", Default.Sync.OnStartup)
	nv.SetDefault("sync.startup_delay", Default.Sync.StartupDelay)
	nv.SetDefault("sync.auto", Default.Sync.Auto)
	nv.SetDefault("sync.interval", Default.Sync.Interval)
	nv.SetDefault("sync.duplicate_handling", string(Default.Sync.DuplicateHandling))
	nv.SetDefault("sync.delete_after_sync", Default.Sync.DeleteAfterSync)
	nv.SetDefault("sync.move_to_processed", Default.Sync.MoveToProcessed)
	nv.SetDefault("sync.extensions", Default.Sync.Extensions)
	nv.SetDefault("sync.ignore_list", Default.Sync.IgnoreList)

	nv.SetDefault("state.backend", Default.State.Backend)
	nv.SetDefault("state.db_path", Default.State.DBPath)
	nv.SetDefault("state.json_path", Default.State.JSONPath)
	nv.SetDefault("state.max_history", Default.State.MaxHistory)
	nv.SetDefault("state.retention_days", Default.State.RetentionDays)

	nv.SetDefault("retry.initial_delay", Default.Retry.InitialDelay)
	nv.SetDefault("retry.max_delay", Default.Retry.MaxDelay)
	nv.SetDefault("retry.multiplier", Default.Retry.Multiplier)
	nv.SetDefault("retry.max_retries", Default.Retry.MaxRetries)
	nv.SetDefault("retry.jitter", Default.Retry.Jitter)

	nv.SetDefault("notifications", Default.Notifications)
	nv.SetDefault("daemon_port", Default.DaemonPort)
}

func decode(nv *viper.Viper, configDir string) (*Config, error) {
	var cfg Config
	if err := nv.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.GitHub.Token = strings.TrimSpace(cfg.GitHub.Token)
	cfg.GitHub.Repository = strings.TrimSpace(cfg.GitHub.Repository)

	if !filepath.IsAbs(cfg.State.DBPath) {
		cfg.State.DBPath = filepath.Join(configDir, cfg.State.DBPath)
	}
	if !filepath.IsAbs(cfg.State.JSONPath) {
		cfg.State.JSONPath = filepath.Join(configDir, cfg.State.JSONPath)
	}

	// delete-after-sync wins when a hand-edited file enables both
	if cfg.Sync.DeleteAfterSync {
		cfg.Sync.MoveToProcessed = false
	}

	return &cfg, nil
}

// SetDeleteAfterSync enables or disables remote deletion. Enabling it turns
// move-to-processed off.
func (c *Config) SetDeleteAfterSync(enabled bool) {
	c.Sync.DeleteAfterSync = enabled
	if enabled {
		c.Sync.MoveToProcessed = false
	}
}

// SetMoveToProcessed enables or disables the processed-folder move. Enabling
// it turns delete-after-sync off.
func (c *Config) SetMoveToProcessed(enabled bool) {
	c.Sync.MoveToProcessed = enabled
	if enabled {
		c.Sync.DeleteAfterSync = false
	}
}

// IsConfigured reports whether enough is set to talk to GitHub at all.
func (c *Config) IsConfigured() bool {
	return c.GitHub.Token != "" && c.GitHub.Repository != ""
}

func (c *Config) StartupDelay() time.Duration {
	return time.Duration(c.Sync.StartupDelay) * time.Second
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sync.Interval) * time.Minute
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.GitHub),
		validation.Field(&c.VaultPath, validation.Required.Error("vault path is required")),
		validation.Field(&c.TargetPath, validation.By(relativePath)),
		validation.Field(&c.Sync),
		validation.Field(&c.State),
		validation.Field(&c.Retry),
		validation.Field(&c.DaemonPort, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func (g GitHubConfig) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Token,
			validation.Required.Error("GitHub token is required"),
			validation.By(tokenFormat)),
		validation.Field(&g.Repository,
			validation.Required.Error("repository is required (owner/repo)"),
			validation.Match(repositoryPattern).Error("must be in owner/repo form")),
		validation.Field(&g.Branch, validation.Required.Error("branch is required")),
		validation.Field(&g.SourcePath, validation.By(relativePath)),
		validation.Field(&g.RequestsPerSecond, validation.Min(0.0)),
	)
}

func (s SyncConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.StartupDelay, validation.Required, validation.Min(1), validation.Max(30)),
		validation.Field(&s.Interval, validation.Required, validation.Min(1), validation.Max(60)),
		validation.Field(&s.DuplicateHandling, validation.Required,
			validation.In(model.DuplicateSkip, model.DuplicateOverwrite, model.DuplicateRename)),
		validation.Field(&s.Extensions, validation.Required),
	)
}

func (s StateConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In(BackendSQLite, BackendJSON)),
		validation.Field(&s.MaxHistory, validation.Required, validation.Min(1)),
		validation.Field(&s.RetentionDays, validation.Required, validation.Min(1)),
	)
}

func (r RetryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.InitialDelay, validation.Min(time.Duration(0))),
		validation.Field(&r.MaxDelay, validation.Required, validation.Min(r.InitialDelay)),
		validation.Field(&r.Multiplier, validation.Required, validation.Min(1.0)),
		validation.Field(&r.MaxRetries, validation.Required, validation.Min(1)),
		validation.Field(&r.Jitter, validation.Min(0.0), validation.Max(1.0)),
	)
}

// ValidRepository reports whether repo has the owner/repo form GitHub accepts.
func ValidRepository(repo string) bool {
	return repositoryPattern.MatchString(strings.TrimSpace(repo))
}

func relativePath(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}

	if strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return validation.NewError("validation_relative_path", "must be a relative path without '..'")
	}

	return nil
}

func tokenFormat(value any) error {
	token, _ := value.(string)
	if token == "" {
		return nil
	}

	if strings.HasPrefix(token, "ghp_") || strings.HasPrefix(token, "github_pat_") || len(token) >= 40 {
		return nil
	}

	return validation.NewError("validation_token_format", "is not a GitHub personal access token")
}
