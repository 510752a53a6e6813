package config

import (
	"errors"
	"fmt"
	"net/url"
	"nrscrawler/internal/components/db"
	"nrscrawler/internal/components/telemetry"
	"nrscrawler/internal/scrapers/nrs"
	"nrscrawler/pkg/configutil"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
)

const DefaultFile = "nrscrawler.json5"

type TemplatesConfig struct {
	Seed     string `json:"seed"`
	Continue string `json:"continue"`
	Control  string `json:"control"`
}

// Fields that may legitimately be 0 are pointers so an explicit 0 survives
// the merge with the defaults.
type RetryConfig struct {
	MaxRetries    *int `json:"max_retries"`
	BackoffUnitMs *int `json:"backoff_unit_ms"`
}

type HttpConfig struct {
	// TimeoutSeconds of 0 disables the per-request timeout.
	TimeoutSeconds    *int    `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	UserAgent         string  `json:"user_agent"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

type StoreConfig struct {
	// File is the sqlite database, it is ignored when Url is set.
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type OutputConfig struct {
	File       string `json:"file"`
	EchoStdout *bool  `json:"echo_stdout"`
}

type DebugConfig struct {
	HttpDumpDir string `json:"http_dump_dir"`
}

type Config struct {
	SourceUrl string `json:"source_url"`
	// DataDir holds the store and the output unless they are set explicitly.
	DataDir  string `json:"data_dir"`
	Timezone string `json:"timezone"`

	Templates              TemplatesConfig `json:"templates"`
	PageSize               int             `json:"page_size"`
	FirstPageRequestNumber int             `json:"first_page_request_number"`
	DiscardPrimingPage     *bool           `json:"discard_priming_page"`

	Retry  RetryConfig  `json:"retry"`
	Http   HttpConfig   `json:"http"`
	Store  StoreConfig  `json:"store"`
	Output OutputConfig `json:"output"`
	Debug  DebugConfig  `json:"debug"`

	Telemetry telemetry.Config `json:"telemetry"`
	Protocol  nrs.Protocol     `json:"protocol"`
}

func ptr[T any](v T) *T {
	return &v
}

func Default() Config {
	return Config{
		SourceUrl: "http://www.securities-administrators.ca/nrs/nrsearchResult.aspx?ID=1325",
		DataDir:   "data",
		Timezone:  "America/Toronto",
		Templates: TemplatesConfig{
			Seed:     "templates/seed.raw",
			Continue: "templates/continue.raw",
			Control:  "templates/control.raw",
		},
		PageSize:               100,
		FirstPageRequestNumber: 2,
		DiscardPrimingPage:     ptr(true),
		Retry: RetryConfig{
			MaxRetries:    ptr(5),
			BackoffUnitMs: ptr(5000),
		},
		Http: HttpConfig{
			TimeoutSeconds: ptr(60),
		},
		Output: OutputConfig{
			EchoStdout: ptr(true),
		},
		Protocol: nrs.DefaultProtocol(),
	}
}

// Load reads the configuration file at path (and its local override), fills
// missing fields with their defaults and resolves relative paths against the
// directory of the file. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return resolve(cfg, filepath.Dir(path))
}

// LoadNearest looks for name in the working directory and then in each of its
// parents, loading the first match. It returns the path that was loaded, when
// nothing is found the defaults are resolved against the working directory.
func LoadNearest(name string) (Config, string, error) {
	cfg, path, err := configutil.ReadRecursively[Config](name)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = resolve(Config{}, ".")
		return cfg, name, err
	}
	if err != nil {
		return Config{}, "", fmt.Errorf("read config %s: %w", name, err)
	}
	cfg, err = resolve(cfg, filepath.Dir(path))
	return cfg, path, err
}

func resolve(cfg Config, dir string) (Config, error) {
	// set pointers are kept as is, a pointer to false or 0 is an explicit value
	err := mergo.Merge(&cfg, Default(), mergo.WithoutDereference)
	if err != nil {
		return Config{}, err
	}

	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	cfg.DataDir = rel(cfg.DataDir)
	cfg.Templates.Seed = rel(cfg.Templates.Seed)
	cfg.Templates.Continue = rel(cfg.Templates.Continue)
	cfg.Templates.Control = rel(cfg.Templates.Control)
	cfg.Debug.HttpDumpDir = rel(cfg.Debug.HttpDumpDir)

	if cfg.Store.File == "" {
		cfg.Store.File = filepath.Join(cfg.DataDir, "state.db")
	} else if cfg.Store.File != ":memory:" {
		cfg.Store.File = rel(cfg.Store.File)
	}
	if cfg.Output.File == "" {
		cfg.Output.File = filepath.Join(cfg.DataDir, "records.jsonl")
	} else {
		cfg.Output.File = rel(cfg.Output.File)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	u, err := url.Parse(c.SourceUrl)
	if err != nil {
		return fmt.Errorf("source_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source_url: unsupported scheme '%s'", u.Scheme)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.FirstPageRequestNumber <= 0 {
		return fmt.Errorf("first_page_request_number must be positive, got %d", c.FirstPageRequestNumber)
	}
	if *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", *c.Retry.MaxRetries)
	}
	if *c.Retry.BackoffUnitMs < 0 {
		return fmt.Errorf("retry.backoff_unit_ms must not be negative, got %d", *c.Retry.BackoffUnitMs)
	}
	if *c.Http.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must not be negative, got %d", *c.Http.TimeoutSeconds)
	}
	if c.Http.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must not be negative, got %v", c.Http.RequestsPerSecond)
	}
	_, err = time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	err = c.Protocol.Validate()
	if err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	return nil
}

func (c Config) LoadTemplates() (nrs.Templates, error) {
	return nrs.LoadTemplates(c.Templates.Seed, c.Templates.Continue, c.Templates.Control)
}

func (c Config) WalkerOptions(templates nrs.Templates) nrs.Options {
	return nrs.Options{
		SourceUrl:              c.SourceUrl,
		Templates:              templates,
		Protocol:               c.Protocol,
		PageSize:               c.PageSize,
		FirstPageRequestNumber: c.FirstPageRequestNumber,
		DiscardPrimingPage:     *c.DiscardPrimingPage,
	}
}

func (c Config) RetryOptions() nrs.RetryOptions {
	return nrs.RetryOptions{
		MaxRetries:  *c.Retry.MaxRetries,
		BackoffUnit: time.Duration(*c.Retry.BackoffUnitMs) * time.Millisecond,
	}
}

func (c Config) HttpOptions() nrs.HttpOptions {
	return nrs.HttpOptions{
		UserAgent:         c.Http.UserAgent,
		Timeout:           time.Duration(*c.Http.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.Http.RequestsPerSecond,
		CloudflareBypass:  c.Http.CloudflareBypass,
	}
}

func (c Config) DBOptions() db.Options {
	return db.Options{
		File:      c.Store.File,
		URL:       c.Store.Url,
		AuthToken: c.Store.AuthToken,
	}
}
