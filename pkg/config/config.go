// Package config assembles the service configuration from defaults, an
// optional YAML file, environment variables and command-line flags, in
// that order of increasing precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Scan     ScanConfig     `yaml:"scan"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ScannerConfig points at the external vulnerability scanner.
type ScannerConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	MaxChildren int    `yaml:"max_children"`
}

// RedisConfig selects the job store backend. An empty Addr keeps jobs
// in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig points at Postgres. An empty DSN disables the
// persistence features (quiz saving, leaderboard).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AIConfig configures quiz generation.
type AIConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// ScanConfig tunes scan execution.
type ScanConfig struct {
	Workers           int           `yaml:"workers"`
	MaxPages          int           `yaml:"max_pages"`
	SpiderTimeout     time.Duration `yaml:"spider_timeout"`
	ActiveScanTimeout time.Duration `yaml:"active_scan_timeout"`
}

// LogConfig tunes logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Scanner: ScannerConfig{
			BaseURL:     "http://localhost:8080",
			MaxChildren: 50,
		},
		AI: AIConfig{
			Model:             "gemini-2.5-flash",
			RequestsPerMinute: 10,
		},
		Scan: ScanConfig{
			Workers:           4,
			MaxPages:          50,
			SpiderTimeout:     5 * time.Minute,
			ActiveScanTimeout: 10 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from args (without the program name).
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("codeclinic", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to YAML config file")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
	origins := fs.String("cors-origins", "", "Comma-separated allowed frontend origins")
	fs.StringVar(&cfg.Scanner.BaseURL, "scanner-url", cfg.Scanner.BaseURL, "Scanner API base URL")
	fs.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "Redis address (empty = in-memory job store)")
	fs.StringVar(&cfg.Database.DSN, "database-dsn", cfg.Database.DSN, "Postgres DSN (empty = persistence disabled)")
	fs.IntVar(&cfg.Scan.Workers, "workers", cfg.Scan.Workers, "Concurrent scan workers")
	fs.IntVar(&cfg.Scan.MaxPages, "max-pages", cfg.Scan.MaxPages, "Page cap per scan")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&cfg.Log.Pretty, "log-pretty", cfg.Log.Pretty, "Human-readable log output")

	// First pass finds -config so the file can be applied underneath
	// the other flags.
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configFile != "" {
		if err := cfg.loadFile(*configFile); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	// Reparse so explicit flags win over file and environment.
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *origins != "" {
		cfg.Server.CORSOrigins = splitList(*origins)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Server.Addr, "CODECLINIC_ADDR")
	setStr(&c.Scanner.BaseURL, "ZAP_BASE_URL")
	setStr(&c.Scanner.APIKey, "ZAP_API_KEY")
	setStr(&c.Redis.Addr, "REDIS_ADDR")
	setStr(&c.Redis.Password, "REDIS_PASSWORD")
	setStr(&c.Database.DSN, "DATABASE_URL")
	setStr(&c.AI.APIKey, "GEMINI_API_KEY")
	setStr(&c.AI.Model, "GEMINI_MODEL")
	setStr(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("FRONTEND_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: empty listen address")
	}
	if c.Scanner.BaseURL == "" {
		return fmt.Errorf("config: empty scanner URL")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("config: workers must be positive")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
