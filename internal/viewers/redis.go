package viewers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed tracker.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

const defaultRedisKey = "sharedvideo:viewers"

// Redis is a Tracker backed by a Redis sorted set scored by ping time,
// for deployments where presence must be shared across instances.
type Redis struct {
	client *redis.Client
	clock  clockwork.Clock
	key    string
}

func NewRedis(cfg RedisConfig, clock clockwork.Clock) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("viewers: connect redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = defaultRedisKey
	}
	return &Redis{client: client, clock: clock, key: key}, nil
}

func (r *Redis) Touch(ctx context.Context, viewerID string) error {
	score := float64(r.clock.Now().UnixNano())
	if err := r.client.ZAdd(ctx, r.key, redis.Z{Score: score, Member: viewerID}).Err(); err != nil {
		return fmt.Errorf("viewers: touch %q: %w", viewerID, err)
	}
	return nil
}

func (r *Redis) ActiveCount(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := r.clock.Now().Add(-timeout).UnixNano()
	n, err := r.client.ZCount(ctx, r.key, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("viewers: active count: %w", err)
	}
	return int(n), nil
}

func (r *Redis) Sweep(ctx context.Context, timeout time.Duration) error {
	cutoff := r.clock.Now().Add(-timeout).UnixNano()
	// Exclusive upper bound: entries exactly at the cutoff still count
	// as active in ActiveCount.
	upper := "(" + strconv.FormatInt(cutoff, 10)
	if err := r.client.ZRemRangeByScore(ctx, r.key, "-inf", upper).Err(); err != nil {
		return fmt.Errorf("viewers: sweep: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("viewers: clear: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

var _ Tracker = (*Redis)(nil)
