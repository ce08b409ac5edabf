package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "playlist.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:9090", cfg.Catalog.BaseURL)
	assert.Equal(t, 10, cfg.Catalog.TimeoutSecs)
	assert.Equal(t, 3, cfg.Catalog.Retries)
	assert.InDelta(t, 5, cfg.Catalog.RatePerSecond, 0.001)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 15, cfg.Conversation.MaxIterations)
	assert.Equal(t, 120, cfg.Conversation.TimeoutSecs)
	assert.Equal(t, 3, cfg.Conversation.EarlyStopWindow)
	assert.InDelta(t, 0.80, cfg.Validation.ConstraintPass, 0.001)
	assert.InDelta(t, 0.70, cfg.Validation.FlowPass, 0.001)
	assert.InDelta(t, 10, cfg.Validation.SmoothDelta, 0.001)
	assert.InDelta(t, 20, cfg.Validation.ChoppyDelta, 0.001)
	assert.InDelta(t, 50, cfg.Validation.FlowScale, 0.001)
	assert.InDelta(t, 0.90, cfg.Padding.MinFillRatio, 0.001)
	assert.Equal(t, 5, cfg.Padding.MaxAttempts)
	assert.Equal(t, 2, cfg.Padding.StartLevel)
	assert.Equal(t, 210, cfg.Padding.AvgTrackSeconds)
	assert.InDelta(t, 5.00, cfg.Budget.TotalUSD, 0.001)
	assert.Equal(t, "hard", cfg.Budget.Mode)
	assert.Equal(t, "dynamic", cfg.Budget.Allocation)
	assert.InDelta(t, 0.25, cfg.Budget.EstimatedSlotCostUSD, 0.001)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "decisions.jsonl", cfg.Decisions.Path)
	assert.InDelta(t, 0.0002, cfg.Pricing.Catalog.PerQuery, 0.00001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/playlists
log:
  level: debug
  format: console
budget:
  total_usd: 12.50
  mode: suggested
batch:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/playlists", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 12.50, cfg.Budget.TotalUSD, 0.001)
	assert.Equal(t, "suggested", cfg.Budget.Mode)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 15, cfg.Conversation.MaxIterations)
	assert.Equal(t, "dynamic", cfg.Budget.Allocation)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PLAYLIST_STORE_DRIVER", "sqlite")
	t.Setenv("PLAYLIST_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PLAYLIST_SERVER_PORT", "3000")
	t.Setenv("PLAYLIST_BUDGET_MODE", "suggested")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "suggested", cfg.Budget.Mode)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all generation defaults populated
// for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Catalog.BaseURL = "http://localhost:9090"
	cfg.Budget.TotalUSD = 5.00
	cfg.Budget.Mode = "hard"
	cfg.Budget.Allocation = "dynamic"
	cfg.Batch.Concurrency = 4
	cfg.Validation.ConstraintPass = 0.80
	cfg.Validation.FlowPass = 0.70
	cfg.Padding.MinFillRatio = 0.90
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateGenerate_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("generate"))
	assert.NoError(t, validDefaults().Validate("batch"))
}

func TestValidateGenerate_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""
	cfg.Catalog.BaseURL = ""

	err := cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "catalog.base_url is required")
}

func TestValidateGenerate_BudgetBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Budget.TotalUSD = 0
	err := cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget.total_usd must be > 0")

	cfg = validDefaults()
	cfg.Budget.Mode = "advisory"
	err = cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget.mode must be hard or suggested")

	cfg = validDefaults()
	cfg.Budget.Allocation = "greedy"
	err = cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget.allocation must be fixed or dynamic")
}

func TestValidateGenerate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 32")

	cfg.Batch.Concurrency = 33
	err = cfg.Validate("batch")
	require.Error(t, err)

	cfg.Batch.Concurrency = 32
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateGenerate_Thresholds(t *testing.T) {
	cfg := validDefaults()
	cfg.Validation.ConstraintPass = 1.5
	err := cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint_pass")

	cfg = validDefaults()
	cfg.Padding.MinFillRatio = 0
	err = cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_fill_ratio")
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("replicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
