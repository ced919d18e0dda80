package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfold/sibyl/internal/domain"
)

const recentPrefix = "sibyl:recent:"

// RecentCache implements domain.RecentCache with one TTL key per contract.
// A key that still exists means the contract was sent to the oracle within
// the throttle interval and should not be re-billed.
type RecentCache struct {
	rdb *redis.Client
}

// NewRecentCache creates a RecentCache backed by the given Client.
func NewRecentCache(c *Client) *RecentCache {
	return &RecentCache{rdb: c.Underlying()}
}

// MarkAnalyzed records the contracts as recently analyzed for the given
// TTL. Re-marking an already-fresh contract extends its window.
func (rc *RecentCache) MarkAnalyzed(ctx context.Context, contractIDs []string, ttl time.Duration) error {
	if len(contractIDs) == 0 {
		return nil
	}

	pipe := rc.rdb.Pipeline()
	for _, id := range contractIDs {
		pipe.Set(ctx, recentPrefix+id, "1", ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mark analyzed: %w", err)
	}
	return nil
}

// FilterFresh returns the subset of contractIDs whose keys still exist.
func (rc *RecentCache) FilterFresh(ctx context.Context, contractIDs []string) (map[string]bool, error) {
	fresh := make(map[string]bool, len(contractIDs))
	if len(contractIDs) == 0 {
		return fresh, nil
	}

	pipe := rc.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(contractIDs))
	for i, id := range contractIDs {
		cmds[i] = pipe.Exists(ctx, recentPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: filter fresh: %w", err)
	}

	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			fresh[contractIDs[i]] = true
		}
	}
	return fresh, nil
}

// Clear drops every recent-analysis key. Only the explicit portfolio reset
// calls this.
func (rc *RecentCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := rc.rdb.Scan(ctx, cursor, recentPrefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("redis: scan recent keys: %w", err)
		}
		if len(keys) > 0 {
			if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis: delete recent keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

var _ domain.RecentCache = (*RecentCache)(nil)
