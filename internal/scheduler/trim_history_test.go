package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrimmer struct {
	cutoffs []time.Time
	deleted int64
	err     error
}

func (s *stubTrimmer) TrimOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.deleted, s.err
}

func TestTrimHistoryJob_Name(t *testing.T) {
	job := NewTrimHistoryJob(&stubTrimmer{}, 180)
	assert.Equal(t, "trim_history", job.Name())
}

func TestTrimHistoryJob_Run(t *testing.T) {
	trimmer := &stubTrimmer{deleted: 42}
	job := NewTrimHistoryJob(trimmer, 30)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())

	require.Len(t, trimmer.cutoffs, 1)
	expected := time.Now().UTC().AddDate(0, 0, -30)
	assert.WithinDuration(t, expected, trimmer.cutoffs[0], time.Minute)
}

func TestTrimHistoryJob_Run_RetentionDisabled(t *testing.T) {
	trimmer := &stubTrimmer{}
	job := NewTrimHistoryJob(trimmer, 0)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, trimmer.cutoffs)
}

func TestTrimHistoryJob_Run_Error(t *testing.T) {
	trimmer := &stubTrimmer{err: errors.New("history.db locked")}
	job := NewTrimHistoryJob(trimmer, 30)
	job.SetLogger(zerolog.Nop())

	require.Error(t, job.Run())
}
