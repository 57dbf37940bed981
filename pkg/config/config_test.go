package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesPresetForAbsentKeys(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environment: development
exchanges:
  primary: paper
  accounts:
    paper: {}
risk:
  portfolio_value: 100000
`))
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Risk.MaxRiskPerTrade)
	assert.Equal(t, 100, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, 20, cfg.Intake.MaxSignalsPerMinute)
	assert.Equal(t, 1, cfg.Retry.MaxRetries)
}

func TestLoadExplicitKeysOverridePreset(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environment: development
exchanges:
  primary: paper
  accounts:
    paper: {}
risk:
  portfolio_value: 100000
  max_risk_per_trade: 0.01
intake:
  max_signals_per_minute: 3
retry:
  max_retries: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.Risk.MaxRiskPerTrade)
	assert.Equal(t, 3, cfg.Intake.MaxSignalsPerMinute)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	// keys the file does not mention still come from the preset
	assert.Equal(t, 100, cfg.Risk.MaxDailyTrades)
}

func TestLoadProductionKeepsStructDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environment: production
exchanges:
  primary: binance
  accounts:
    binance: {api_key: k, api_secret: s}
risk:
  portfolio_value: 250000
`))
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Risk.MaxRiskPerTrade)
	assert.Equal(t, 20, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, 5, cfg.Intake.MaxSignalsPerMinute)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: sandbox
exchanges:
  primary: paper
  accounts:
    paper: {}
risk:
  portfolio_value: 100000
`))
	assert.Error(t, err)
}

func TestLoadRejectsMissingPrimaryAccount(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: production
exchanges:
  primary: binance
risk:
  portfolio_value: 100000
`))
	assert.ErrorContains(t, err, "missing the primary exchange")
}
