package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vacuumn/jira-client/pkg/logging"
)

// Prometheus metrics for user cache operations.
var (
	userCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_user_cache_hits_total",
		Help: "User cache hits by scope",
	}, []string{"scope"})

	userCacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_user_cache_misses_total",
		Help: "User cache misses by scope",
	}, []string{"scope"})
)

// Scope names the sharing discipline of a cache instance.
type Scope string

const (
	// ScopePrivate keeps entries in-process, owned by one Cache value.
	ScopePrivate Scope = "private"

	// ScopeShared keeps entries in Redis, shared across instances and
	// processes.
	ScopeShared Scope = "shared"
)

// Lookup is the user lookup surface the cache fronts.
type Lookup interface {
	GetUserByKey(ctx context.Context, key string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Cache memoizes user lookups. Entries are keyed by email address, not by
// user key; key lookups scan the cached values. Negative email lookups are
// cached too, so a missing user costs one remote call, not one per read.
//
// There is no invalidation. Concurrency discipline: both backing stores
// allow concurrent reads and resolve concurrent inserts last-write-wins,
// so a Cache may be shared across goroutines.
type Cache struct {
	lookup Lookup
	store  cacheStore
	scope  Scope
	logger zerolog.Logger
}

// NewPrivateCache creates a cache whose entries live in process memory and
// are visible only through this instance.
func NewPrivateCache(lookup Lookup) *Cache {
	return &Cache{
		lookup: lookup,
		store:  newMemoryStore(),
		scope:  ScopePrivate,
		logger: logging.NewLogger("users-cache"),
	}
}

// NewSharedCache creates a cache backed by Redis, shared by every instance
// pointed at the same Redis database.
func NewSharedCache(lookup Lookup, redisClient *redis.Client) *Cache {
	return &Cache{
		lookup: lookup,
		store:  newRedisStore(redisClient),
		scope:  ScopeShared,
		logger: logging.NewLogger("users-cache"),
	}
}

// Scope returns the sharing scope of this cache.
func (c *Cache) Scope() Scope {
	return c.scope
}

// GetUserByEmail returns the user for the email, consulting the cache
// first. The remote result is cached whether or not a user was found.
func (c *Cache) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, nil
	}

	user, cached, err := c.store.getByEmail(ctx, email)
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", string(c.scope)).Msg("User cache read failed")
	} else if cached {
		userCacheHitsTotal.WithLabelValues(string(c.scope)).Inc()
		return user, nil
	}
	userCacheMissesTotal.WithLabelValues(string(c.scope)).Inc()

	user, err = c.lookup.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if storeErr := c.store.put(ctx, email, user); storeErr != nil {
		c.logger.Warn().Err(storeErr).Str("scope", string(c.scope)).Msg("User cache write failed")
	}

	return user, nil
}

// GetUserByKey returns the user for the key. The cache is keyed by email,
// so this scans cached values first; a remote hit is inserted under the
// user's email address. Negative key lookups are not cached.
func (c *Cache) GetUserByKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, nil
	}

	user, found, err := c.store.findByKey(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", string(c.scope)).Msg("User cache scan failed")
	} else if found {
		userCacheHitsTotal.WithLabelValues(string(c.scope)).Inc()
		return user, nil
	}
	userCacheMissesTotal.WithLabelValues(string(c.scope)).Inc()

	user, err = c.lookup.GetUserByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if user != nil {
		if storeErr := c.store.put(ctx, user.EmailAddress, user); storeErr != nil {
			c.logger.Warn().Err(storeErr).Str("scope", string(c.scope)).Msg("User cache write failed")
		}
	}

	return user, nil
}

// cacheStore is the backing store behind a Cache. A stored nil user is a
// cached negative result, distinct from "not cached".
type cacheStore interface {
	getByEmail(ctx context.Context, email string) (user *User, cached bool, err error)
	put(ctx context.Context, email string, user *User) error
	findByKey(ctx context.Context, key string) (user *User, found bool, err error)
}

// memoryStore is the in-process store for private caches. An RWMutex
// allows concurrent reads; concurrent writers resolve last-write-wins.
type memoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byEmail: make(map[string]*User)}
}

func (s *memoryStore) getByEmail(_ context.Context, email string) (*User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, cached := s.byEmail[email]
	return user, cached, nil
}

func (s *memoryStore) put(_ context.Context, email string, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byEmail[email] = user
	return nil
}

func (s *memoryStore) findByKey(_ context.Context, key string) (*User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.byEmail {
		if user != nil && user.Key == key {
			return user, true, nil
		}
	}
	return nil, false, nil
}

// redisKeyPrefix namespaces user cache entries in Redis.
const redisKeyPrefix = "jira:users:email:"

// cachedUser is the Redis value shape. Found false marks a cached
// negative result.
type cachedUser struct {
	Found bool  `json:"found"`
	User  *User `json:"user,omitempty"`
}

// redisStore is the Redis-backed store for shared caches. Entries have no
// TTL, matching the no-invalidation discipline; concurrent SET calls
// resolve last-write-wins in Redis.
type redisStore struct {
	redis *redis.Client
}

func newRedisStore(redisClient *redis.Client) *redisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &redisStore{redis: redisClient}
}

func (s *redisStore) getByEmail(ctx context.Context, email string) (*User, bool, error) {
	data, err := s.redis.Get(ctx, redisKeyPrefix+email).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry cachedUser
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal cache entry: %w", err)
	}

	if !entry.Found {
		return nil, true, nil
	}
	return entry.User, true, nil
}

func (s *redisStore) put(ctx context.Context, email string, user *User) error {
	entry := cachedUser{Found: user != nil, User: user}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKeyPrefix+email, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisStore) findByKey(ctx context.Context, key string) (*User, bool, error) {
	iter := s.redis.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		email := strings.TrimPrefix(iter.Val(), redisKeyPrefix)
		user, cached, err := s.getByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		if cached && user != nil && user.Key == key {
			return user, true, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, false, fmt.Errorf("redis scan: %w", err)
	}

	return nil, false, nil
}
