// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/config"
	"github.com/relaycrm/pulse/internal/database"
)

// InitializeDatabases initializes all 4 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. signals.db - Behavioral signal stream (append-heavy)
	signalsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/signals.db",
		Profile: database.ProfileLedger, // Signals are the audit trail scores derive from
		Name:    "signals",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signals database: %w", err)
	}
	container.SignalsDB = signalsDB

	// 2. scores.db - Live score snapshots, one row per account
	scoresDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/scores.db",
		Profile: database.ProfileStandard,
		Name:    "scores",
	})
	if err != nil {
		signalsDB.Close()
		return nil, fmt.Errorf("failed to initialize scores database: %w", err)
	}
	container.ScoresDB = scoresDB

	// 3. config.db - Scoring configurations and the account directory
	configDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/config.db",
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		signalsDB.Close()
		scoresDB.Close()
		return nil, fmt.Errorf("failed to initialize config database: %w", err)
	}
	container.ConfigDB = configDB

	// 4. history.db - Append-only score history for trend analysis
	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		signalsDB.Close()
		scoresDB.Close()
		configDB.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	// Apply schemas to all databases (single source of truth)
	for _, db := range []*database.DB{signalsDB, scoresDB, configDB, historyDB} {
		if err := db.Migrate(); err != nil {
			signalsDB.Close()
			scoresDB.Close()
			configDB.Close()
			historyDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
