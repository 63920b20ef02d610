package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tunelab/trialrun/internal/pkg/errors"
)

// RedisSink records metric points to a Redis sorted set so the search
// controller can query trial history without scraping files. Points are
// scored by step under a trial-scoped key.
type RedisSink struct {
	client *redis.Client
	prefix string
	trial  string
	ttl    time.Duration
}

// RedisSinkConfig holds Redis sink settings.
type RedisSinkConfig struct {
	URL    string        // Redis connection URL
	Prefix string        // Key prefix
	Trial  string        // Trial name scoping the keys (may be empty)
	TTL    time.Duration // Expiry applied to metric keys; 0 keeps them forever
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(cfg RedisSinkConfig) (*RedisSink, error) {
	if cfg.URL == "" {
		return nil, errors.PreconditionError("redis url not configured")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to redis", err)
	}

	return &RedisSink{
		client: client,
		prefix: cfg.Prefix,
		trial:  cfg.Trial,
		ttl:    cfg.TTL,
	}, nil
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// key builds the sorted-set key for a metric name.
func (s *RedisSink) key(metric string) string {
	if s.trial == "" {
		return s.prefix + metric
	}
	return s.prefix + s.trial + ":" + metric
}

// Record adds one step-scored point.
func (s *RedisSink) Record(ctx context.Context, m Metric) error {
	key := s.key(m.Name)
	member := fmt.Sprintf("%d:%s", m.Step, strconv.FormatFloat(m.Value, 'g', -1, 64))

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(m.Step),
		Member: member,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.CodeSink, "saving metric point", err)
	}
	return nil
}

// Close releases the connection.
func (s *RedisSink) Close() error {
	if err := s.client.Close(); err != nil {
		return errors.Wrap(errors.CodeSink, "failed to close redis client", err)
	}
	return nil
}
