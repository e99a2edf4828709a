package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-member-auth"
)

const (
	DefaultKeyPrefix = "member-auth:verification:"
	DefaultRetention = 24 * time.Hour
)

// transitionScript swaps the stored attempt for ARGV[3] only when it still
// carries status ARGV[1] and attempt id ARGV[2]. Returns 1 on swap.
var transitionScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local current = cjson.decode(raw)
if current.status ~= ARGV[1] or current.attempt_id ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[3], "PX", ARGV[4])
return 1
`)

// RedisConfig holds the connection settings for the verification cache
type RedisConfig struct {
	Addr         string        `env:"ADDR" envDefault:"localhost:6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB" envDefault:"0"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"1"`
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	KeyPrefix    string        `env:"KEY_PREFIX" envDefault:"member-auth:verification:"`
	// Retention is how long an attempt stays readable after its last write.
	// It must outlive the verification window.
	Retention time.Duration `env:"RETENTION" envDefault:"24h"`
}

// ToRedisOptions maps the config onto client options
func (c RedisConfig) ToRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Connect opens a client and pings it before handing it back
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.ToRedisOptions())

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "redis connection failed")
	}

	return client, nil
}

// VerificationCache is an auth.VerificationStore that keeps one JSON encoded
// attempt per email under a prefixed key.
type VerificationCache struct {
	client    redis.Cmdable
	prefix    string
	retention time.Duration
}

var _ auth.VerificationStore = (*VerificationCache)(nil)

// CacheOption customizes the VerificationCache
type CacheOption func(*VerificationCache)

// WithKeyPrefix namespaces the keys
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *VerificationCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithRetention sets the key expiration applied on every save
func WithRetention(d time.Duration) CacheOption {
	return func(c *VerificationCache) {
		if d > 0 {
			c.retention = d
		}
	}
}

// NewVerificationCache wraps a redis client
func NewVerificationCache(client redis.Cmdable, opts ...CacheOption) *VerificationCache {
	c := &VerificationCache{
		client:    client,
		prefix:    DefaultKeyPrefix,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewVerificationCacheFromConfig applies the prefix and retention from cfg
func NewVerificationCacheFromConfig(client redis.Cmdable, cfg RedisConfig) *VerificationCache {
	return NewVerificationCache(client, WithKeyPrefix(cfg.KeyPrefix), WithRetention(cfg.Retention))
}

// Key is the redis key holding the attempt for email
func (c *VerificationCache) Key(email string) string {
	return c.prefix + strings.ToLower(strings.TrimSpace(email))
}

func (c *VerificationCache) FindByEmailAndStatus(ctx context.Context, email string, status auth.VerificationStatus) (*auth.VerificationAttempt, error) {
	raw, err := c.client.Get(ctx, c.Key(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, auth.ErrRecordNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read verification attempt")
	}

	attempt := &auth.VerificationAttempt{}
	if err := json.Unmarshal(raw, attempt); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode verification attempt")
	}

	if attempt.Status != status {
		return nil, auth.ErrRecordNotFound
	}

	return attempt, nil
}

// Save overwrites the attempt and resets its retention
func (c *VerificationCache) Save(ctx context.Context, attempt *auth.VerificationAttempt) error {
	attempt.Email = strings.ToLower(strings.TrimSpace(attempt.Email))
	if attempt.UpdatedAt == nil {
		now := time.Now()
		attempt.UpdatedAt = &now
	}

	raw, err := json.Marshal(attempt)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode verification attempt")
	}

	if err := c.client.Set(ctx, c.Key(attempt.Email), raw, c.retention).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write verification attempt")
	}

	return nil
}

// Transition runs the compare-and-swap server side so a code issued between
// the read and the commit is never overwritten
func (c *VerificationCache) Transition(ctx context.Context, from auth.VerificationStatus, next *auth.VerificationAttempt) error {
	next.Email = strings.ToLower(strings.TrimSpace(next.Email))
	if next.UpdatedAt == nil {
		now := time.Now()
		next.UpdatedAt = &now
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode verification attempt")
	}

	swapped, err := transitionScript.Run(ctx, c.client,
		[]string{c.Key(next.Email)},
		from, next.AttemptID, string(raw), c.retention.Milliseconds(),
	).Int()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to transition verification attempt")
	}

	if swapped == 0 {
		return auth.ErrVerificationConflict
	}

	return nil
}

func (c *VerificationCache) Delete(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, c.Key(email)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete verification attempt")
	}
	return nil
}
