// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/modules/accounts"
	"github.com/relaycrm/pulse/internal/modules/scores"
	"github.com/relaycrm/pulse/internal/modules/scoring"
	"github.com/relaycrm/pulse/internal/modules/signals"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Signal repository (needs signalsDB)
	container.SignalRepo = signals.NewRepository(
		container.SignalsDB.Conn(),
		log,
	)

	// Account directory (needs configDB)
	container.AccountRepo = accounts.NewRepository(
		container.ConfigDB.Conn(),
		log,
	)

	// Live score snapshots (needs scoresDB)
	container.ScoreRepo = scores.NewRepository(
		container.ScoresDB.Conn(),
		log,
	)

	// Score history trail (needs historyDB)
	container.HistoryRepo = scores.NewHistoryRepository(
		container.HistoryDB.Conn(),
		log,
	)

	// Scoring configuration store (needs configDB)
	container.ConfigRepo = scoring.NewRepository(
		container.ConfigDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
