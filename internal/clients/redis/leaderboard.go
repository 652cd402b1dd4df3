// Package redis provides the optional score leaderboard cache.
//
// One sorted set per organization keeps accounts ranked by score, so the
// dashboard's top-accounts view skips sqlite entirely on the hot path.
// The cache is advisory: sqlite stays the authority and every consumer
// falls back to it when Redis is off or stale.
package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Leaderboard maintains the per-org score rankings.
type Leaderboard struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewLeaderboard creates a leaderboard over an established Redis client.
func NewLeaderboard(client *redis.Client, log zerolog.Logger) *Leaderboard {
	return &Leaderboard{
		client: client,
		log:    log.With().Str("client", "leaderboard").Logger(),
	}
}

func leaderboardKey(orgID string) string {
	return "pulse:leaderboard:" + orgID
}

// Update sets one account's score in the org ranking.
func (l *Leaderboard) Update(ctx context.Context, orgID, accountID string, score float64) error {
	err := l.client.ZAdd(ctx, leaderboardKey(orgID), redis.Z{
		Score:  score,
		Member: accountID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update leaderboard for org %s: %w", orgID, err)
	}
	return nil
}

// TopIDs returns up to limit account ids, best score first.
func (l *Leaderboard) TopIDs(ctx context.Context, orgID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := l.client.ZRevRange(ctx, leaderboardKey(orgID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard for org %s: %w", orgID, err)
	}
	return ids, nil
}

// Rebuild replaces the org's ranking with exactly the given scores.
// Delete and repopulate run in one transaction so readers never observe an
// empty ranking mid-rebuild. Called after bulk recompute; it also evicts
// members for accounts that no longer exist.
func (l *Leaderboard) Rebuild(ctx context.Context, orgID string, scores map[string]float64) error {
	key := leaderboardKey(orgID)

	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(scores) > 0 {
			members := make([]redis.Z, 0, len(scores))
			for accountID, score := range scores {
				members = append(members, redis.Z{Score: score, Member: accountID})
			}
			p.ZAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild leaderboard for org %s: %w", orgID, err)
	}

	l.log.Debug().
		Str("org_id", orgID).
		Int("accounts", len(scores)).
		Msg("Leaderboard rebuilt")

	return nil
}

// Clear drops the org's ranking entirely.
func (l *Leaderboard) Clear(ctx context.Context, orgID string) error {
	if err := l.client.Del(ctx, leaderboardKey(orgID)).Err(); err != nil {
		return fmt.Errorf("failed to clear leaderboard for org %s: %w", orgID, err)
	}
	return nil
}
