package scoring_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/modules/scoring"
)

// TestLoadDefaultsEmbedded tests the platform seed shipped in the binary
func TestLoadDefaultsEmbedded(t *testing.T) {
	cfg, err := scoring.LoadDefaults("")
	require.NoError(t, err)

	assert.Equal(t, 100.0, cfg.MaxScore)
	assert.Equal(t, domain.TierThresholds{Hot: 70, Warm: 40, Cold: 10}, cfg.TierThresholds)

	// Every supported signal type gets at least one seeded rule, so a fresh
	// org produces non-trivial scores from its first signals
	covered := make(map[string]bool)
	for _, rule := range cfg.Rules {
		covered[rule.SignalType] = true
		assert.True(t, rule.Enabled, "seed rule %s must be enabled", rule.ID)
	}
	for _, signalType := range []string{
		"page_view",
		"feature_used",
		"api_call",
		"login",
		"trial_started",
		"demo_requested",
		"support_ticket_opened",
	} {
		assert.True(t, covered[signalType], "no seed rule for signal type %s", signalType)
	}

	// The seed exercises the full rule shape: a penalty weight and a
	// conditioned rule
	var sawNegative, sawConditioned bool
	for _, rule := range cfg.Rules {
		if rule.Weight < 0 {
			sawNegative = true
		}
		if len(rule.Conditions) > 0 {
			sawConditioned = true
			assert.Equal(t, domain.OpEq, rule.Conditions[0].Operator)
		}
	}
	assert.True(t, sawNegative, "seed should include a penalty rule")
	assert.True(t, sawConditioned, "seed should include a conditioned rule")
}

// TestLoadDefaultsOverridePath tests reading an operator-supplied seed file
func TestLoadDefaultsOverridePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	seed := `
max_score: 50
tier_thresholds:
  hot: 30
  warm: 20
  cold: 5
rules:
  - id: logins
    name: Logins
    signal_type: login
    weight: 3
    decay: 7d
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	cfg, err := scoring.LoadDefaults(path)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.MaxScore)
	assert.Equal(t, 30.0, cfg.TierThresholds.Hot)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, domain.Decay7d, cfg.Rules[0].Decay)
}

// TestLoadDefaultsMissingFile tests that a bad override path fails startup
func TestLoadDefaultsMissingFile(t *testing.T) {
	_, err := scoring.LoadDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestLoadDefaultsRejectsInvalidSeed tests that an override seed goes
// through the same validation as user configs
func TestLoadDefaultsRejectsInvalidSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	seed := `
max_score: 100
tier_thresholds:
  hot: 10
  warm: 40
  cold: 70
rules: []
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	_, err := scoring.LoadDefaults(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

// TestLoadDefaultsBadYAML tests that unparseable seeds fail loudly
func TestLoadDefaultsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [}{"), 0o644))

	_, err := scoring.LoadDefaults(path)
	require.Error(t, err)
}
