package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/observability"
)

// accountRegistrar keeps the account directory in sync with observed signals
// (for dependency injection, implemented by the accounts repository)
type accountRegistrar interface {
	Ensure(ctx context.Context, orgID, accountID string) error
}

// IngestRequest is the wire shape for signal ingestion
type IngestRequest struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	AccountID string         `json:"account_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks the required request fields
func (req IngestRequest) Validate() error {
	if req.Type == "" {
		return fmt.Errorf("type is required")
	}
	if req.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	return nil
}

// signal fills defaults and converts the request into a domain signal.
// Missing ids get a uuid; a zero timestamp means "now". Future timestamps
// are accepted as-is (the evaluator treats them as age zero).
func (req IngestRequest) signal(now time.Time) domain.Signal {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return domain.Signal{
		ID:        id,
		Type:      req.Type,
		AccountID: req.AccountID,
		ActorID:   req.ActorID,
		Timestamp: ts.UTC(),
		Metadata:  req.Metadata,
	}
}

// RejectedSignal reports one invalid item inside a batch
type RejectedSignal struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult summarizes a batch ingestion
type BatchResult struct {
	Accepted   int              `json:"accepted"`
	Duplicates int              `json:"duplicates"`
	Rejected   []RejectedSignal `json:"rejected,omitempty"`
}

// Service handles signal ingestion: persistence, directory sync and
// event emission
type Service struct {
	repo      *Repository
	registrar accountRegistrar
	bus       *events.Bus
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// NewService creates a new signal ingestion service
func NewService(repo *Repository, registrar accountRegistrar, bus *events.Bus, metrics *observability.Metrics, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		registrar: registrar,
		bus:       bus,
		metrics:   metrics,
		log:       log.With().Str("service", "signals").Logger(),
	}
}

// Ingest persists one signal. The request must already be validated.
// Returns the stored signal and whether a new row was created; replaying
// an id that already exists is a no-op.
func (s *Service) Ingest(ctx context.Context, orgID string, req IngestRequest) (domain.Signal, bool, error) {
	signal := req.signal(time.Now().UTC())

	created, err := s.repo.Insert(ctx, orgID, signal)
	if err != nil {
		return domain.Signal{}, false, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	if !created {
		s.log.Debug().
			Str("signal_id", signal.ID).
			Str("account_id", signal.AccountID).
			Msg("Duplicate signal ignored")
		return signal, false, nil
	}

	// Accounts observed through signals join the directory so bulk
	// recompute picks them up even before explicit registration
	if s.registrar != nil {
		if err := s.registrar.Ensure(ctx, orgID, signal.AccountID); err != nil {
			s.log.Warn().
				Err(err).
				Str("account_id", signal.AccountID).
				Msg("Failed to register account from signal")
		}
	}

	s.metrics.SignalIngested()

	if s.bus != nil {
		s.bus.Emit(events.SignalIngested, "signals", map[string]any{
			"org_id":      orgID,
			"signal_id":   signal.ID,
			"account_id":  signal.AccountID,
			"signal_type": signal.Type,
		})
	}

	return signal, true, nil
}

// IngestBatch persists a batch of signals. Invalid items are rejected
// individually and reported; valid items are still ingested. A store
// failure aborts the remainder of the batch.
func (s *Service) IngestBatch(ctx context.Context, orgID string, reqs []IngestRequest) (BatchResult, error) {
	result := BatchResult{}

	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			result.Rejected = append(result.Rejected, RejectedSignal{
				Index:  i,
				Reason: err.Error(),
			})
			continue
		}

		_, created, err := s.Ingest(ctx, orgID, req)
		if err != nil {
			return result, fmt.Errorf("batch item %d: %w", i, err)
		}
		if created {
			result.Accepted++
		} else {
			result.Duplicates++
		}
	}

	s.log.Info().
		Str("org_id", orgID).
		Int("accepted", result.Accepted).
		Int("duplicates", result.Duplicates).
		Int("rejected", len(result.Rejected)).
		Msg("Signal batch ingested")

	return result, nil
}
