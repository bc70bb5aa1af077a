// Package config loads agent settings from defaults, an optional YAML file
// and AGT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/petasbytes/bb-agent/internal/provider"
)

const (
	EnvPrefix = "AGT"

	DefaultModel        = string(provider.DefaultModel)
	DefaultMaxTokens    = 1024
	DefaultTokenBudget  = 100000
	DefaultSystemPrompt = "You are a helpful coding assistant working in the user's terminal. " +
		"Be concise and say when you are unsure."
)

// Config holds everything the agent reads at startup.
type Config struct {
	Model        string `mapstructure:"model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	SystemPrompt string `mapstructure:"system_prompt"`
	LogLevel     string `mapstructure:"log_level"`

	// TokenBudget caps the estimated input tokens sent per request; older
	// turns beyond it stay in the snapshot but are not sent. 0 sends everything.
	TokenBudget int `mapstructure:"token_budget"`

	// ObserveJSON appends structured events to events.jsonl.
	ObserveJSON bool `mapstructure:"observe_json"`
	// PersistPayloads writes every API request and response as bb-req-*/bb-resp-* files.
	PersistPayloads bool `mapstructure:"persist_api_payloads"`
	// ResumePreClear lets a pre-clear snapshot seed the next session.
	ResumePreClear bool `mapstructure:"resume_pre_clear"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", DefaultModel)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("log_level", "info")
	v.SetDefault("token_budget", DefaultTokenBudget)
	v.SetDefault("observe_json", false)
	v.SetDefault("persist_api_payloads", false)
	v.SetDefault("resume_pre_clear", true)
}

// Load builds the configuration. When file is non-empty it must exist;
// otherwise config.yaml is looked up in searchDir and skipped if absent.
func Load(file, searchDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if searchDir != "" {
			v.AddConfigPath(searchDir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the agent cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("invalid max_tokens %d: must be positive", c.MaxTokens)
	}
	if c.TokenBudget < 0 {
		return fmt.Errorf("invalid token_budget %d: must not be negative", c.TokenBudget)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
