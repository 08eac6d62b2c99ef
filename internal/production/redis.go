package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comalice/hfsm/internal/core"
)

var (
	ErrRedisURL      = errors.New("failed to parse redis connection string")
	ErrRedisNotReady = errors.New("redis did not answer ping")
)

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
	URL           string
	RetryAttempts int
	RetryInterval time.Duration
}

// ConnectRedis opens a client and pings until Redis answers or the attempts
// run out.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrRedisURL, err)
	}
	attempts := max(cfg.RetryAttempts, 1)
	for range attempts {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrRedisNotReady
}

// RedisPersister stores each snapshot as a JSON string under prefix+entity.
// A zero ttl keeps keys forever.
type RedisPersister struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisPersister(client redis.Cmdable, prefix string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisPersister) key(entityID string) string { return p.prefix + entityID }

func (p *RedisPersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := p.client.Set(ctx, p.key(snapshot.EntityID), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.key(snapshot.EntityID), err)
	}
	return nil
}

func (p *RedisPersister) Load(ctx context.Context, entityID string) (core.Snapshot, error) {
	data, err := p.client.Get(ctx, p.key(entityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Snapshot{}, fmt.Errorf("entity %q: %w", entityID, core.ErrNotFound)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("redis get %s: %w", p.key(entityID), err)
	}
	var snapshot core.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return core.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snapshot, nil
}

func (p *RedisPersister) Delete(ctx context.Context, entityID string) error {
	return p.client.Del(ctx, p.key(entityID)).Err()
}
