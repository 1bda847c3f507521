package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to initialise the crawl engine.
type Config struct {
	Crawl           CrawlConfig      `yaml:"crawl"`
	Timeouts        TimeoutConfig    `yaml:"timeouts"`
	Worker          WorkerConfig     `yaml:"worker"`
	Quiescence      QuiescenceConfig `yaml:"quiescence"`
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"`
	RulesFile       string           `yaml:"rules_file"`
	Params          ParamsConfig     `yaml:"params"`
	TemplateFile    string           `yaml:"template_file"`
	TemplateReplace []Replacement    `yaml:"template_replace"`
	Events          EventsConfig     `yaml:"events"`
	Logging         LoggingConfig    `yaml:"logging"`
}

// CrawlConfig controls the crawl frontier, scope, and request behaviour.
type CrawlConfig struct {
	Seeds              []string `yaml:"seeds"`
	SeedsFile          string   `yaml:"seeds_file"`
	SeedBase           string   `yaml:"seed_base"`
	SeedContext        string   `yaml:"seed_context"`
	MaxDepth           int      `yaml:"max_depth"`
	MaxRetries         int      `yaml:"max_retries"`
	RetryBackoff       Duration `yaml:"retry_backoff"`
	Method             string   `yaml:"method"`
	ProxyURL           string   `yaml:"proxy_url"`
	ProxyEnabled       bool     `yaml:"proxy_enabled"`
	SubDomain          string   `yaml:"sub_domain"`
	ExcludedExtensions string   `yaml:"excluded_extensions"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
	UserAgent          string   `yaml:"user_agent"`
}

// TimeoutConfig bounds each phase of an HTTP exchange independently.
type TimeoutConfig struct {
	Connect Duration `yaml:"connect"`
	Read    Duration `yaml:"read"`
	Write   Duration `yaml:"write"`
	Pool    Duration `yaml:"pool"`
}

// WorkerConfig sizes the fetch and extraction pools.
type WorkerConfig struct {
	FetchConcurrency   int `yaml:"fetch_concurrency"`
	ExtractConcurrency int `yaml:"extract_concurrency"`
	MaxConnsPerHost    int `yaml:"max_conns_per_host"`
}

// QuiescenceConfig tunes the completion detector.
type QuiescenceConfig struct {
	PollInterval    Duration `yaml:"poll_interval"`
	ConfirmInterval Duration `yaml:"confirm_interval"`
	ConfirmChecks   int      `yaml:"confirm_checks"`
}

// ParamsConfig points at the optional parameter-substitution dictionary.
type ParamsConfig struct {
	File    string `yaml:"file"`
	Enabled bool   `yaml:"enabled"`
}

// Replacement is one ordered regex rewrite applied to the raw request template.
type Replacement struct {
	Pattern string `yaml:"pattern"`
	With    string `yaml:"with"`
}

// EventsConfig sizes the outcome and exclusion streams.
type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

// LoggingConfig selects log verbosity, format, and the request log target.
type LoggingConfig struct {
	Level             string `yaml:"level"`
	Structured        bool   `yaml:"structured"`
	RequestLog        string `yaml:"request_log"`
	RequestLogConsole bool   `yaml:"request_log_console"`
}

// DefaultExcludedExtensions lists the static assets skipped by default.
const DefaultExcludedExtensions = ".css,.png,.jpg,.ico,.jepg,.exe,.zip,.dmg,.pdf"

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			MaxDepth:           5,
			MaxRetries:         3,
			RetryBackoff:       DurationFrom(500 * time.Millisecond),
			Method:             "",
			ProxyURL:           "http://127.0.0.1:8080",
			ProxyEnabled:       false,
			SubDomain:          "*",
			ExcludedExtensions: DefaultExcludedExtensions,
			InsecureSkipVerify: true,
			MaxBodyBytes:       20 * 1024 * 1024,
		},
		Timeouts: TimeoutConfig{
			Connect: DurationFrom(10 * time.Second),
			Read:    DurationFrom(60 * time.Second),
			Write:   DurationFrom(10 * time.Second),
			Pool:    DurationFrom(20 * time.Second),
		},
		Worker: WorkerConfig{
			FetchConcurrency:   5,
			ExtractConcurrency: 3,
			MaxConnsPerHost:    20,
		},
		Quiescence: QuiescenceConfig{
			PollInterval:    DurationFrom(time.Second),
			ConfirmInterval: DurationFrom(4 * time.Second),
			ConfirmChecks:   3,
		},
		ShutdownTimeout: DurationFrom(10 * time.Second),
		RulesFile:       "rules.yml",
		Params: ParamsConfig{
			File: "paramdict.yml",
		},
		Events: EventsConfig{
			Buffer: 256,
		},
		Logging: LoggingConfig{
			Level:             "info",
			Structured:        false,
			RequestLog:        "requestlog.log",
			RequestLogConsole: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()

	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants for the crawler configuration.
func (c Config) Validate() error {
	if c.Crawl.MaxDepth <= 0 {
		return fmt.Errorf("crawl.max_depth must be > 0 (got %d)", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be >= 0 (got %d)", c.Crawl.MaxRetries)
	}
	if c.Crawl.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawl.max_body_bytes must be > 0 (got %d)", c.Crawl.MaxBodyBytes)
	}
	if c.Crawl.ProxyEnabled {
		if strings.TrimSpace(c.Crawl.ProxyURL) == "" {
			return errors.New("crawl.proxy_url must be set when crawl.proxy_enabled is true")
		}
		if _, err := url.Parse(c.Crawl.ProxyURL); err != nil {
			return fmt.Errorf("crawl.proxy_url: %w", err)
		}
	}
	if c.Worker.FetchConcurrency <= 0 {
		return fmt.Errorf("worker.fetch_concurrency must be > 0 (got %d)", c.Worker.FetchConcurrency)
	}
	if c.Worker.ExtractConcurrency <= 0 {
		return fmt.Errorf("worker.extract_concurrency must be > 0 (got %d)", c.Worker.ExtractConcurrency)
	}
	if c.Quiescence.PollInterval.Duration <= 0 {
		return errors.New("quiescence.poll_interval must be > 0")
	}
	if c.Quiescence.ConfirmInterval.Duration <= 0 {
		return errors.New("quiescence.confirm_interval must be > 0")
	}
	if c.Quiescence.ConfirmChecks < 0 {
		return fmt.Errorf("quiescence.confirm_checks must be >= 0 (got %d)", c.Quiescence.ConfirmChecks)
	}
	if c.Events.Buffer < 0 {
		return fmt.Errorf("events.buffer must be >= 0 (got %d)", c.Events.Buffer)
	}
	for i, r := range c.TemplateReplace {
		if r.Pattern == "" {
			return fmt.Errorf("template_replace[%d].pattern must not be empty", i)
		}
	}
	if c.Params.Enabled && strings.TrimSpace(c.Params.File) == "" {
		return errors.New("params.file must be set when params.enabled is true")
	}
	return nil
}

func (c *Config) normalise() {
	for i := range c.Crawl.Seeds {
		c.Crawl.Seeds[i] = strings.TrimSpace(c.Crawl.Seeds[i])
	}
	c.Crawl.Method = strings.ToUpper(strings.TrimSpace(c.Crawl.Method))
	c.Crawl.SubDomain = strings.TrimSpace(c.Crawl.SubDomain)
	c.Crawl.ExcludedExtensions = strings.Join(dedupeLower(strings.Split(c.Crawl.ExcludedExtensions, ",")), ",")
	c.Crawl.ProxyURL = strings.TrimSpace(c.Crawl.ProxyURL)
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.RulesFile = strings.TrimSpace(c.RulesFile)
	c.TemplateFile = strings.TrimSpace(c.TemplateFile)
	c.Params.File = strings.TrimSpace(c.Params.File)
}

// ExtensionList returns the excluded extensions as a slice.
func (c CrawlConfig) ExtensionList() []string {
	return dedupeLower(strings.Split(c.ExcludedExtensions, ","))
}

// Proxy returns the proxy URL when the proxy switch is on.
func (c CrawlConfig) Proxy() string {
	if !c.ProxyEnabled {
		return ""
	}
	return c.ProxyURL
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}
