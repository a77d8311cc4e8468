package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	f "github.com/soffa-projects/matchqueue/core"
	apperrors "github.com/soffa-projects/matchqueue/errors"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/log"
)

// NewPubSubProvider picks an implementation from the url scheme:
// redis:// or fake://.
func NewPubSubProvider(provider string) (f.PubSubProvider, error) {
	res, err := h.ParseEndpoint(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pubsub provider: %w", err)
	}
	switch res.Scheme {
	case "redis", "rediss":
		log.Info("using redis pubsub provider...")
		p, err := NewRedisPubSubProvider(res)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "fake", "faker", "dummy":
		log.Info("using fake pubsub provider...")
		return NewFakePubSubProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported pubsub provider: %s", res.Scheme)
	}
}

// ------------------------------------------------------------------------------------------------------------------
// REDIS PUBSUB PROVIDER IMPL
// ------------------------------------------------------------------------------------------------------------------

type RedisPubSubProvider struct {
	client *redis.Client
}

func NewRedisClient(cfg h.Endpoint) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisPubSubProvider(cfg h.Endpoint) (*RedisPubSubProvider, error) {
	client := NewRedisClient(cfg)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Unavailable("failed to ping redis", err)
	}
	log.Info("redis connection successful")
	return &RedisPubSubProvider{client: client}, nil
}

func (p *RedisPubSubProvider) Publish(ctx context.Context, topic string, message string) error {
	if err := p.client.Publish(ctx, topic, message).Err(); err != nil {
		log.Error("[redis] failed to publish message: %v", err)
		return err
	}
	log.Debug("[redis] message published to topic: %s", topic)
	return nil
}

// Subscribe returns once the subscription is confirmed by the server.
// Messages are handed to handler in order on a single goroutine.
func (p *RedisPubSubProvider) Subscribe(ctx context.Context, topic string, handler func(message string)) error {
	sub := p.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				log.Debug("[redis] event received on %s", msg.Channel)
				handler(msg.Payload)
			}
		}
	}()
	return nil
}

func (p *RedisPubSubProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPubSubProvider) Close() error {
	return p.client.Close()
}

// ------------------------------------------------------------------------------------------------------------------
// FAKE PUBSUB PROVIDER IMPL
// ------------------------------------------------------------------------------------------------------------------

// FakePubSubProvider delivers synchronously inside Publish.
type FakePubSubProvider struct {
	mu          sync.Mutex
	sent        map[string]int
	received    map[string]int
	subscribers map[string][]func(message string)
}

func NewFakePubSubProvider() *FakePubSubProvider {
	return &FakePubSubProvider{
		sent:        make(map[string]int),
		received:    make(map[string]int),
		subscribers: make(map[string][]func(message string)),
	}
}

func (p *FakePubSubProvider) Ping(ctx context.Context) error {
	return nil
}

func (p *FakePubSubProvider) Publish(ctx context.Context, topic string, message string) error {
	p.mu.Lock()
	p.sent[topic]++
	handlers := append([]func(string){}, p.subscribers[topic]...)
	p.received[topic] += len(handlers)
	p.mu.Unlock()

	for _, handler := range handlers {
		handler(message)
	}
	return nil
}

func (p *FakePubSubProvider) Subscribe(ctx context.Context, topic string, handler func(message string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers[topic] = append(p.subscribers[topic], handler)
	return nil
}

func (p *FakePubSubProvider) Close() error {
	return nil
}

func (p *FakePubSubProvider) Received(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received[topic]
}

func (p *FakePubSubProvider) Sent(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[topic]
}
