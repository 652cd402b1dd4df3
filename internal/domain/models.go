// Package domain provides core domain models and types for the scoring engine.
package domain

import "time"

// Tier represents the discrete engagement bucket derived from a numeric score
type Tier string

const (
	// TierHot - accounts showing strong buying intent
	TierHot Tier = "HOT"
	// TierWarm - accounts with meaningful recent activity
	TierWarm Tier = "WARM"
	// TierCold - accounts with minimal activity
	TierCold Tier = "COLD"
	// TierInactive - accounts below every threshold (or with no signals at all)
	TierInactive Tier = "INACTIVE"
)

// Valid reports whether the tier is one of the allowed enum values
func (t Tier) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierCold, TierInactive:
		return true
	}
	return false
}

// Trend represents the direction of score movement between snapshots
type Trend string

const (
	TrendRising  Trend = "RISING"
	TrendStable  Trend = "STABLE"
	TrendFalling Trend = "FALLING"
)

// DecayWindow represents the named time-decay window applied to a rule's
// contribution. Contributions decay linearly to zero at the window boundary.
type DecayWindow string

const (
	DecayNone DecayWindow = "none"
	Decay7d   DecayWindow = "7d"
	Decay14d  DecayWindow = "14d"
	Decay30d  DecayWindow = "30d"
	Decay90d  DecayWindow = "90d"
)

// decayDays maps each finite window to its length in days
var decayDays = map[DecayWindow]float64{
	Decay7d:  7,
	Decay14d: 14,
	Decay30d: 30,
	Decay90d: 90,
}

// Days returns the window length in days and true for finite windows.
// DecayNone (and unknown values) return 0 and false.
func (d DecayWindow) Days() (float64, bool) {
	days, ok := decayDays[d]
	return days, ok
}

// Valid reports whether the decay window is one of the allowed enum values
func (d DecayWindow) Valid() bool {
	if d == DecayNone {
		return true
	}
	_, ok := decayDays[d]
	return ok
}

// Operator represents a condition comparison operator.
// The set is closed: each variant has an explicit comparison function in the
// engine, and type-mismatched comparisons fail the condition rather than error.
type Operator string

const (
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpEq       Operator = "eq"
	OpContains Operator = "contains"
)

// Valid reports whether the operator is one of the allowed enum values
func (o Operator) Valid() bool {
	switch o {
	case OpGt, OpLt, OpEq, OpContains:
		return true
	}
	return false
}

// Condition is a single rule predicate over signal metadata.
// All conditions on a rule are AND-combined.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// ScoringRule maps one signal type to a weighted, optionally-decayed score
// contribution. Weight may be negative to model penalty signals (churn risk,
// support escalations). Disabled rules contribute zero.
type ScoringRule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	SignalType string      `json:"signal_type"`
	Weight     float64     `json:"weight"`
	Decay      DecayWindow `json:"decay"`
	Conditions []Condition `json:"conditions,omitempty"`
	Enabled    bool        `json:"enabled"`
}

// TierThresholds defines the score cutoffs between tiers.
// Invariant: Hot > Warm > Cold >= 0 (strictly descending).
type TierThresholds struct {
	Hot  float64 `json:"hot"`
	Warm float64 `json:"warm"`
	Cold float64 `json:"cold"`
}

// TierFor maps a score to its tier. Boundaries are inclusive on the upper
// tier: a score exactly equal to Hot is HOT, not WARM.
func (t TierThresholds) TierFor(score float64) Tier {
	switch {
	case score >= t.Hot:
		return TierHot
	case score >= t.Warm:
		return TierWarm
	case score >= t.Cold:
		return TierCold
	default:
		return TierInactive
	}
}

// ScoringConfig is the full rule set for one organization. There is exactly
// one active config per org; updates replace the whole document (no partial
// patches) so concurrent readers never observe a split-brain rule set.
type ScoringConfig struct {
	Rules          []ScoringRule  `json:"rules"`
	TierThresholds TierThresholds `json:"tier_thresholds"`
	MaxScore       float64        `json:"max_score"`
}

// Signal is a single behavioral event associated with an account.
// Signals are immutable once ingested; the engine only reads them.
type Signal struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	AccountID string         `json:"account_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ScoreFactor records one rule's aggregated contribution to an account score.
// Factors exist for explainability: the dashboard shows users why an account
// landed in its tier.
type ScoreFactor struct {
	RuleID       string  `json:"rule_id"`
	RuleName     string  `json:"rule_name"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Description  string  `json:"description"`
}

// AccountScore is a computed score snapshot for one account.
// The engine exclusively writes these; everything else reads.
type AccountScore struct {
	ID           string        `json:"id"`
	AccountID    string        `json:"account_id"`
	Score        float64       `json:"score"`
	Tier         Tier          `json:"tier"`
	Factors      []ScoreFactor `json:"factors"`
	SignalCount  int           `json:"signal_count"`
	UserCount    int           `json:"user_count"`
	LastSignalAt *time.Time    `json:"last_signal_at,omitempty"`
	Trend        Trend         `json:"trend"`
	ComputedAt   time.Time     `json:"computed_at"`
}

// ScorePreview is the per-account before/after produced by a dry run.
// Ephemeral: built for the response and discarded, never persisted.
type ScorePreview struct {
	AccountID    string  `json:"account_id"`
	CurrentScore float64 `json:"current_score"`
	PreviewScore float64 `json:"preview_score"`
	CurrentTier  Tier    `json:"current_tier"`
	PreviewTier  Tier    `json:"preview_tier"`
}

// RecomputeResult summarizes a bulk recompute run over one organization
type RecomputeResult struct {
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	SkippedIDs []string      `json:"skipped_ids,omitempty"`
	Config     ScoringConfig `json:"config"`
}

// Account is a minimal tenant account record (the companies-CRUD collaborator
// owns the rich version; the engine only needs identity)
type Account struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
