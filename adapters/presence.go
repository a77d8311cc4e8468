package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/log"
)

const defaultPresenceTTL = 30 * time.Second

var _ f.SessionSource = (*RedisPresence)(nil)

// RedisPresence shares connected users across instances. Each instance owns
// one redis set, rewritten from its local sessions on every presence change
// and on a heartbeat. A set expires once its instance stops refreshing it.
type RedisPresence struct {
	client *redis.Client
	prefix string
	key    string
	ttl    time.Duration
	local  f.SessionSource
}

func NewRedisPresence(redisURL string, prefix string, ttl time.Duration, local f.SessionSource) (*RedisPresence, error) {
	endpoint, err := h.ParseEndpoint(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse presence url: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	if prefix == "" {
		prefix = "matchqueue:presence"
	}
	return &RedisPresence{
		client: NewRedisClient(endpoint),
		prefix: prefix,
		key:    prefix + ":" + h.NewId("instance"),
		ttl:    ttl,
		local:  local,
	}, nil
}

// Sync replaces this instance's set with the users of its local sessions.
func (p *RedisPresence) Sync(ctx context.Context) error {
	ids, err := p.local.ConnectedSessions(ctx)
	if err != nil {
		return err
	}
	ids = h.UniqueStrings(ids)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.key)
		if len(ids) > 0 {
			members := make([]interface{}, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			pipe.SAdd(ctx, p.key, members...)
			pipe.Expire(ctx, p.key, p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sync presence: %w", err)
	}
	return nil
}

// ConnectedSessions returns the users connected to any live instance.
func (p *RedisPresence) ConnectedSessions(ctx context.Context) ([]string, error) {
	var keys []string
	iter := p.client.Scan(ctx, 0, p.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list presence sets: %w", err)
	}
	if len(keys) == 0 {
		return []string{}, nil
	}
	ids, err := p.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence sets: %w", err)
	}
	return ids, nil
}

// Run refreshes the set until ctx is done.
func (p *RedisPresence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Sync(ctx); err != nil && ctx.Err() == nil {
				log.Warn("presence heartbeat failed: %v", err)
			}
		}
	}
}

// Close removes this instance's set and closes the client.
func (p *RedisPresence) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		log.Warn("failed to remove presence set %s: %v", p.key, err)
	}
	return p.client.Close()
}
