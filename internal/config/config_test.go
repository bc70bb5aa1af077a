package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/petasbytes/bb-agent/internal/config"
	"github.com/petasbytes/bb-agent/internal/provider"
)

// ConfigTestSuite runs every case against a fresh search directory and a
// clean AGT_* environment.
type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	for _, k := range []string{"MODEL", "MAX_TOKENS", "SYSTEM_PROMPT", "LOG_LEVEL", "OBSERVE_JSON", "PERSIST_API_PAYLOADS", "RESUME_PRE_CLEAR", "TOKEN_BUDGET"} {
		key := config.EnvPrefix + "_" + k
		if v, ok := os.LookupEnv(key); ok {
			s.T().Cleanup(func() { os.Setenv(key, v) })
			require.NoError(s.T(), os.Unsetenv(key))
		}
	}
}

func (s *ConfigTestSuite) writeConfig(name, body string) string {
	p := filepath.Join(s.dir, name)
	require.NoError(s.T(), os.WriteFile(p, []byte(body), 0o644))
	return p
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := config.Load("", s.dir)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), config.DefaultModel, cfg.Model)
	assert.Equal(s.T(), config.DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(s.T(), config.DefaultSystemPrompt, cfg.SystemPrompt)
	assert.False(s.T(), cfg.ObserveJSON)
	assert.False(s.T(), cfg.PersistPayloads)
	assert.True(s.T(), cfg.ResumePreClear)
	assert.Equal(s.T(), config.DefaultTokenBudget, cfg.TokenBudget)
	assert.Equal(s.T(), string(provider.DefaultModel), config.DefaultModel)
}

func (s *ConfigTestSuite) TestFileInSearchDir() {
	s.writeConfig("config.yaml", "model: claude-haiku-4-5\nmax_tokens: 2048\nresume_pre_clear: false\n")

	cfg, err := config.Load("", s.dir)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "claude-haiku-4-5", cfg.Model)
	assert.Equal(s.T(), 2048, cfg.MaxTokens)
	assert.False(s.T(), cfg.ResumePreClear)
}

func (s *ConfigTestSuite) TestEnvOverridesFile() {
	s.writeConfig("config.yaml", "model: from-file\nobserve_json: false\n")
	s.T().Setenv("AGT_MODEL", "from-env")
	s.T().Setenv("AGT_OBSERVE_JSON", "1")
	s.T().Setenv("AGT_PERSIST_API_PAYLOADS", "true")
	s.T().Setenv("AGT_TOKEN_BUDGET", "0")

	cfg, err := config.Load("", s.dir)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "from-env", cfg.Model)
	assert.True(s.T(), cfg.ObserveJSON)
	assert.True(s.T(), cfg.PersistPayloads)
	assert.Zero(s.T(), cfg.TokenBudget)
}

func (s *ConfigTestSuite) TestExplicitFileMustExist() {
	_, err := config.Load(filepath.Join(s.dir, "missing.yaml"), "")
	assert.Error(s.T(), err)

	p := s.writeConfig("custom.yaml", "system_prompt: be brief\n")
	cfg, err := config.Load(p, "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "be brief", cfg.SystemPrompt)
}

func (s *ConfigTestSuite) TestInvalidValues() {
	s.T().Setenv("AGT_MAX_TOKENS", "0")
	_, err := config.Load("", s.dir)
	assert.ErrorContains(s.T(), err, "max_tokens")

	s.T().Setenv("AGT_MAX_TOKENS", "100")
	s.T().Setenv("AGT_TOKEN_BUDGET", "-5")
	_, err = config.Load("", s.dir)
	assert.ErrorContains(s.T(), err, "token_budget")

	s.T().Setenv("AGT_TOKEN_BUDGET", "500")
	s.T().Setenv("AGT_LOG_LEVEL", "loud")
	_, err = config.Load("", s.dir)
	assert.ErrorContains(s.T(), err, "unknown log level")
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"INFO":    zerolog.InfoLevel,
		" trace ": zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"Warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range cases {
		got, err := config.ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := config.ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := config.NewLogger(&buf, zerolog.WarnLevel)
	log.Info().Msg("quiet")
	log.Warn().Msg("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}
