package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TrimHistoryJob removes score history rows older than the retention window.
// History backs trend sparklines; rows past the window only cost disk.
type TrimHistoryJob struct {
	log           zerolog.Logger
	history       HistoryTrimmer
	retentionDays int
}

// NewTrimHistoryJob creates a new TrimHistoryJob. A retention of zero or less
// disables trimming; history then grows unbounded.
func NewTrimHistoryJob(history HistoryTrimmer, retentionDays int) *TrimHistoryJob {
	return &TrimHistoryJob{
		log:           zerolog.Nop(),
		history:       history,
		retentionDays: retentionDays,
	}
}

// SetLogger sets the logger for the job
func (j *TrimHistoryJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *TrimHistoryJob) Name() string {
	return "trim_history"
}

// Run deletes history rows older than the retention window
func (j *TrimHistoryJob) Run() error {
	if j.retentionDays <= 0 {
		j.log.Debug().Msg("History retention disabled, skipping trim")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.history.TrimOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to trim score history: %w", err)
	}

	j.log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Int("retention_days", j.retentionDays).
		Msg("Score history trimmed")

	return nil
}
