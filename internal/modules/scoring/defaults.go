package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relaycrm/pulse/configs"
	"github.com/relaycrm/pulse/internal/domain"
)

// seedFile mirrors the YAML schema of the default scoring seed.
// It is kept separate from domain.ScoringConfig so the wire shape of the
// seed file can evolve without touching the domain type.
type seedFile struct {
	MaxScore       float64 `yaml:"max_score"`
	TierThresholds struct {
		Hot  float64 `yaml:"hot"`
		Warm float64 `yaml:"warm"`
		Cold float64 `yaml:"cold"`
	} `yaml:"tier_thresholds"`
	Rules []struct {
		ID         string  `yaml:"id"`
		Name       string  `yaml:"name"`
		SignalType string  `yaml:"signal_type"`
		Weight     float64 `yaml:"weight"`
		Decay      string  `yaml:"decay"`
		Enabled    bool    `yaml:"enabled"`
		Conditions []struct {
			Field    string `yaml:"field"`
			Operator string `yaml:"operator"`
			Value    any    `yaml:"value"`
		} `yaml:"conditions"`
	} `yaml:"rules"`
}

// LoadDefaults parses the platform default scoring configuration.
// With an empty path the embedded seed is used; a non-empty path (usually
// from PULSE_DEFAULT_CONFIG_PATH) reads an external YAML file instead, so
// operators can tune platform defaults without rebuilding.
//
// The parsed config passes the same validation as user-supplied configs;
// a bad seed fails startup rather than scoring every org against garbage.
func LoadDefaults(path string) (domain.ScoringConfig, error) {
	raw := configs.DefaultScoring
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return domain.ScoringConfig{}, fmt.Errorf("failed to read default config %s: %w", path, err)
		}
		raw = b
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("failed to parse default config: %w", err)
	}

	cfg := domain.ScoringConfig{
		MaxScore: f.MaxScore,
		TierThresholds: domain.TierThresholds{
			Hot:  f.TierThresholds.Hot,
			Warm: f.TierThresholds.Warm,
			Cold: f.TierThresholds.Cold,
		},
		Rules: make([]domain.ScoringRule, 0, len(f.Rules)),
	}
	for _, r := range f.Rules {
		rule := domain.ScoringRule{
			ID:         r.ID,
			Name:       r.Name,
			SignalType: r.SignalType,
			Weight:     r.Weight,
			Decay:      domain.DecayWindow(r.Decay),
			Enabled:    r.Enabled,
		}
		for _, c := range r.Conditions {
			rule.Conditions = append(rule.Conditions, domain.Condition{
				Field:    c.Field,
				Operator: domain.Operator(c.Operator),
				Value:    c.Value,
			})
		}
		cfg.Rules = append(cfg.Rules, rule)
	}

	if err := Validate(cfg); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("default config is invalid: %w", err)
	}
	return cfg, nil
}
