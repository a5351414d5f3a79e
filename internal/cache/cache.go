package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/linkstash/internal/config"
	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/store"
)

const (
	keyPrefix  = "linkstash:bookmarks:"
	defaultTTL = 5 * time.Minute
)

// BookmarkCache keeps per-user bookmark lists in Redis so the re-fetch on
// every change notification does not always hit Postgres. A nil
// *BookmarkCache is valid and disables caching; all methods no-op on it.
//
// Writes are guarded by a per-user generation: Invalidate bumps it, and a
// SetList carrying an older generation is discarded. A list read from the
// database before a change committed can therefore never be re-cached after
// the change's invalidation ran.
type BookmarkCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
	gens   generations
}

// generations tracks a monotonic counter per user.
type generations struct {
	mu sync.Mutex
	m  map[string]uint64
}

func (g *generations) load(userID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[userID]
}

func (g *generations) bump(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m == nil {
		g.m = make(map[string]uint64)
	}
	g.m[userID]++
}

// matches reports whether the counter is still at gen, holding the lock for
// the duration of fn so a concurrent bump cannot slip between the check and
// the write fn performs.
func (g *generations) matches(userID string, gen uint64, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m[userID] != gen {
		return false
	}
	fn()
	return true
}

// New connects to Redis and verifies the connection with a ping. Returns nil
// with no error when no Redis address is configured.
func New(cfg *config.Config, log logger.Logger) (*BookmarkCache, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("bookmark list cache enabled", logger.String("addr", cfg.Redis.Addr))
	return &BookmarkCache{client: client, ttl: defaultTTL, log: log}, nil
}

// GetList returns the cached list for a user, reporting a hit. Any Redis or
// decode failure degrades to a miss.
func (c *BookmarkCache) GetList(ctx context.Context, userID string) ([]store.Bookmark, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("bookmark cache read failed", logger.Error(err))
		}
		return nil, false
	}

	var bookmarks []store.Bookmark
	if err := json.Unmarshal(raw, &bookmarks); err != nil {
		c.log.Warn("bookmark cache entry corrupt, dropping", logger.Error(err))
		_ = c.client.Del(ctx, key(userID)).Err()
		return nil, false
	}
	return bookmarks, true
}

// Generation returns the current write generation for a user. Callers load
// it before reading the database and hand it back to SetList.
func (c *BookmarkCache) Generation(userID string) uint64 {
	if c == nil {
		return 0
	}
	return c.gens.load(userID)
}

// SetList stores a user's list, provided no Invalidate ran since gen was
// loaded. Failures are logged and ignored; the cache is best-effort.
func (c *BookmarkCache) SetList(ctx context.Context, userID string, gen uint64, bookmarks []store.Bookmark) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(bookmarks)
	if err != nil {
		return
	}

	stored := c.gens.matches(userID, gen, func() {
		if err := c.client.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
			c.log.Warn("bookmark cache write failed", logger.Error(err))
		}
	})
	if !stored {
		c.log.Debug("bookmark cache write skipped, list superseded",
			logger.String("user_id", userID))
	}
}

// Invalidate drops a user's cached list and advances the generation so an
// in-flight SetList of an older list cannot resurrect it. Called on local
// mutations and on every change notification for the user.
func (c *BookmarkCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	c.gens.bump(userID)
	if err := c.client.Del(ctx, key(userID)).Err(); err != nil {
		c.log.Warn("bookmark cache invalidation failed", logger.Error(err))
	}
}

// Close releases the Redis connection.
func (c *BookmarkCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func key(userID string) string {
	return keyPrefix + userID
}
