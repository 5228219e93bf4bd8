package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/autodd/internal/forum"
	"github.com/ppiankov/autodd/internal/retrieval"
)

const (
	DefaultConfigFile    = "config.yaml"
	DefaultEnvFile       = ".env"
	DefaultStoragePath   = ".autodd/autodd.db"
	DefaultRetainDays    = 90
	DefaultLookbackHours = 24
	DefaultSourceMode    = "hybrid"
	DefaultTimezone      = "UTC"

	DefaultBulkBaseURL  = "https://arctic-shift.photon-reddit.com"
	DefaultPageSize     = 100
	DefaultMaxRetries   = 3
	DefaultBulkTimeout  = 30 * time.Second
	DefaultLiveBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL     = "https://www.reddit.com/api/v1/access_token"
	DefaultFetchCap     = 1000
	DefaultProbeBaseURL = "https://www.reddit.com"

	DefaultClientIDEnv     = "AUTODD_CLIENT_ID"
	DefaultClientSecretEnv = "AUTODD_CLIENT_SECRET"
	DefaultUserAgentEnv    = "AUTODD_USER_AGENT"

	DefaultFinanceBaseURL = "https://query1.finance.yahoo.com"
	DefaultBatchSize      = 100
	DefaultFinanceWorkers = 4
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	LookbackHours int               `yaml:"lookback_hours"`
	SourceMode    string            `yaml:"source_mode"`
	Timezone      string            `yaml:"timezone"`
	Forums        map[string]string `yaml:"forums"`
	SanityForums  []string          `yaml:"sanity_forums"`
	Fields        []string          `yaml:"fields"`
	Sources       SourcesConfig     `yaml:"sources"`
	Finance       FinanceConfig     `yaml:"finance"`
	Report        ReportConfig      `yaml:"report"`
	Storage       StorageConfig     `yaml:"storage"`

	// Dir is the directory the config was loaded from; relative file
	// references resolve against it.
	Dir string `yaml:"-"`
}

type SourcesConfig struct {
	Bulk  BulkConfig  `yaml:"bulk"`
	Live  LiveConfig  `yaml:"live"`
	Probe ProbeConfig `yaml:"probe"`
}

type BulkConfig struct {
	BaseURL    string   `yaml:"base_url"`
	ProxyFile  string   `yaml:"proxy_file"`
	PageSize   int      `yaml:"page_size"`
	MaxRetries int      `yaml:"max_retries"`
	Timeout    Duration `yaml:"timeout"`
}

type LiveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	UserAgentEnv    string `yaml:"user_agent_env"`
	BaseURL         string `yaml:"base_url"`
	TokenURL        string `yaml:"token_url"`
	FetchCap        int    `yaml:"fetch_cap"`
}

type ProbeConfig struct {
	BaseURL string `yaml:"base_url"`
}

type FinanceConfig struct {
	BaseURL   string `yaml:"base_url"`
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"` // 0 keeps every run
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
// A .env file next to config.yaml is loaded first; variables already set win.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// retain_days: 0 is meaningful, so its default is set before decoding
	cfg := Config{Storage: StorageConfig{RetainDays: DefaultRetainDays}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Dir = dir

	if err := loadEnvFile(filepath.Join(dir, DefaultEnvFile)); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LookbackHours == 0 {
		cfg.LookbackHours = DefaultLookbackHours
	}
	if cfg.SourceMode == "" {
		cfg.SourceMode = DefaultSourceMode
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if len(cfg.Forums) == 0 {
		cfg.Forums = forum.DefaultForums()
	}
	if cfg.SanityForums == nil {
		cfg.SanityForums = defaultSanityForums(cfg.Forums)
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = []string{"title", "link_flair_text", "selftext", "score"}
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}

	bulk := &cfg.Sources.Bulk
	if bulk.BaseURL == "" {
		bulk.BaseURL = DefaultBulkBaseURL
	}
	if bulk.PageSize == 0 {
		bulk.PageSize = DefaultPageSize
	}
	if bulk.MaxRetries == 0 {
		bulk.MaxRetries = DefaultMaxRetries
	}
	if bulk.Timeout.Duration == 0 {
		bulk.Timeout.Duration = DefaultBulkTimeout
	}

	live := &cfg.Sources.Live
	if live.ClientIDEnv == "" {
		live.ClientIDEnv = DefaultClientIDEnv
	}
	if live.ClientSecretEnv == "" {
		live.ClientSecretEnv = DefaultClientSecretEnv
	}
	if live.UserAgentEnv == "" {
		live.UserAgentEnv = DefaultUserAgentEnv
	}
	if live.BaseURL == "" {
		live.BaseURL = DefaultLiveBaseURL
	}
	if live.TokenURL == "" {
		live.TokenURL = DefaultTokenURL
	}
	if live.FetchCap == 0 {
		live.FetchCap = DefaultFetchCap
	}

	if cfg.Sources.Probe.BaseURL == "" {
		cfg.Sources.Probe.BaseURL = DefaultProbeBaseURL
	}

	if cfg.Finance.BaseURL == "" {
		cfg.Finance.BaseURL = DefaultFinanceBaseURL
	}
	if cfg.Finance.BatchSize == 0 {
		cfg.Finance.BatchSize = DefaultBatchSize
	}
	if cfg.Finance.Workers == 0 {
		cfg.Finance.Workers = DefaultFinanceWorkers
	}

	applyReportDefaults(&cfg.Report)
}

// defaultSanityForums keeps the built-in sanity set restricted to forums in the table.
func defaultSanityForums(forums map[string]string) []string {
	out := []string{}
	for _, f := range []string{"wallstreetbets", "wallstreetbetsELITE", "SatoshiStreetBets"} {
		if _, ok := forums[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.LookbackHours <= 0 {
		return fmt.Errorf("lookback_hours: must be positive, got %d", cfg.LookbackHours)
	}

	if _, err := retrieval.ParseMode(cfg.SourceMode); err != nil {
		return fmt.Errorf("source_mode: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	for _, f := range cfg.SanityForums {
		if _, ok := cfg.Forums[f]; !ok {
			return fmt.Errorf("sanity_forums: %q is not in forums", f)
		}
	}

	if cfg.Storage.RetainDays < 0 {
		return fmt.Errorf("storage.retain_days: must not be negative, got %d", cfg.Storage.RetainDays)
	}

	if cfg.Sources.Bulk.PageSize < 0 || cfg.Sources.Live.FetchCap < 0 {
		return errors.New("sources: page_size and fetch_cap must not be negative")
	}

	return validateReport(&cfg.Report)
}

// Location returns the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Mode returns the parsed source mode.
func (c *Config) Mode() retrieval.Mode {
	m, _ := retrieval.ParseMode(c.SourceMode)
	return m
}

// Resolve returns path relative to the config directory unless it is absolute or empty.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}
