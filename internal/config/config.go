package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	SourcesDir string     `yaml:"sources_dir"`
	Extraction Extraction `yaml:"extraction"`
	LLM        LLM        `yaml:"llm"`
	LogStore   LogStore   `yaml:"log_store"`
	Archive    Archive    `yaml:"archive"`
	Logging    Logging    `yaml:"logging"`
}

type Extraction struct {
	// Strategy is one of "auto", "remote" or "pattern".
	Strategy         string        `yaml:"strategy"`
	BatchSize        int           `yaml:"batch_size"`
	MinContentLength int           `yaml:"min_content_length"`
	ContentWindow    int           `yaml:"content_window"`
	RequestDelay     time.Duration `yaml:"request_delay"`
}

type LLM struct {
	Provider        string        `yaml:"provider"`
	ProviderName    string        `yaml:"provider_name"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	CredentialsFile string        `yaml:"credentials_file"`
	SystemPrompt    string        `yaml:"system_prompt"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

type LogStore struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Archive struct {
	Feeds        []Feed        `yaml:"feeds"`
	MaxPerFeed   int           `yaml:"max_per_feed"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type Feed struct {
	Source string `yaml:"source"`
	URL    string `yaml:"url"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for parainsights.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "parainsights")
}

// DataDir returns the XDG data directory for parainsights.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "parainsights")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/parainsights/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'parainsights init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Extraction: Extraction{
			Strategy:         "auto",
			BatchSize:        30,
			MinContentLength: 100,
			ContentWindow:    5000,
			RequestDelay:     300 * time.Millisecond,
		},
		LLM: LLM{
			Provider:     "openai",
			ProviderName: "zai",
			BaseURL:      "https://api.z.ai/api/coding/paas/v4",
			Model:        "glm-4.7",
			APIKeyEnv:    "ZAI_API_KEY",
			SystemPrompt: "You are an expert content analyst specializing in extracting actionable insights from articles.",
			Temperature:  0.3,
			MaxTokens:    2000,
			Timeout:      120 * time.Second,
		},
		LogStore: LogStore{Driver: "sqlite"},
		Archive: Archive{
			MaxPerFeed:   20,
			FetchTimeout: 15 * time.Second,
		},
		Logging: Logging{Level: "info"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Extraction.Strategy {
	case "auto", "remote", "pattern":
	default:
		return fmt.Errorf("invalid extraction.strategy %q (want auto, remote or pattern)", c.Extraction.Strategy)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid llm.provider %q (want openai or ollama)", c.LLM.Provider)
	}
	switch c.LogStore.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid log_store.driver %q (want sqlite or postgres)", c.LogStore.Driver)
	}
	if c.Extraction.BatchSize < 1 {
		return fmt.Errorf("extraction.batch_size must be positive, got %d", c.Extraction.BatchSize)
	}
	return nil
}

// GetSourcesDir returns the archive root from config or the XDG default.
func (c *Config) GetSourcesDir() string {
	if c.SourcesDir != "" {
		return expandHome(c.SourcesDir)
	}
	return filepath.Join(DataDir(), "sources")
}

// GetLogStoreDSN returns the log store DSN, defaulting to a SQLite file in the data dir.
func (c *Config) GetLogStoreDSN() string {
	if c.LogStore.DSN != "" {
		if c.LogStore.Driver == "sqlite" {
			return expandHome(c.LogStore.DSN)
		}
		return c.LogStore.DSN
	}
	return filepath.Join(DataDir(), "para.sqlite")
}

// ResolveAPIKey returns the LLM credential. The environment variable named by
// llm.api_key_env wins; otherwise the JSON credentials file is consulted under
// env.<API_KEY_ENV> and providers.<provider_name>.apiKey. Empty means none.
func (c *Config) ResolveAPIKey() string {
	if c.LLM.APIKeyEnv != "" {
		if key := strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv)); key != "" {
			return key
		}
	}
	if c.LLM.CredentialsFile == "" {
		return ""
	}

	data, err := os.ReadFile(expandHome(c.LLM.CredentialsFile))
	if err != nil {
		return ""
	}
	var creds struct {
		Env       map[string]string `json:"env"`
		Providers map[string]struct {
			APIKey string `json:"apiKey"`
		} `json:"providers"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return ""
	}
	if key := creds.Env[c.LLM.APIKeyEnv]; key != "" {
		return key
	}
	return creds.Providers[c.LLM.ProviderName].APIKey
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
