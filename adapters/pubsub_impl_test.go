package adapters

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	f "github.com/soffa-projects/matchqueue/core"
	apperrors "github.com/soffa-projects/matchqueue/errors"
	"github.com/soffa-projects/matchqueue/test"
)

type inbox struct {
	mu       sync.Mutex
	messages []string
}

func (i *inbox) add(message string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.messages = append(i.messages, message)
}

func (i *inbox) list() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string{}, i.messages...)
}

// ------------------------------------------------------------------------------------------------------------------
// Factory Functions Tests
// ------------------------------------------------------------------------------------------------------------------

func TestNewPubSubProvider_Fake(t *testing.T) {
	assert := test.NewAssertions(t)

	for _, provider := range []string{"fake://provider", "faker://provider", "dummy://provider"} {
		pubsub, err := NewPubSubProvider(provider)
		assert.Nil(err)
		assert.NotNil(pubsub)
		var _ f.PubSubProvider = pubsub
	}
}

func TestNewPubSubProvider_UnsupportedScheme(t *testing.T) {
	assert := test.NewAssertions(t)

	pubsub, err := NewPubSubProvider("unsupported://localhost")
	assert.NotNil(err)
	assert.True(pubsub == nil)
}

func TestNewPubSubProvider_RedisUnreachable(t *testing.T) {
	assert := test.NewAssertions(t)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	pubsub, err := NewPubSubProvider("redis://" + addr)
	assert.NotNil(err)
	assert.True(pubsub == nil)
	assert.Equals(apperrors.GetStatusCode(err), http.StatusServiceUnavailable)
}

// ------------------------------------------------------------------------------------------------------------------
// Redis Provider Tests
// ------------------------------------------------------------------------------------------------------------------

func TestRedisPubSubProvider_PublishAndSubscribe(t *testing.T) {
	assert := test.NewAssertions(t)
	mr := miniredis.RunT(t)

	pubsub, err := NewPubSubProvider("redis://" + mr.Addr())
	assert.Nil(err)
	defer pubsub.Close()
	assert.Nil(pubsub.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := &inbox{}
	assert.Nil(pubsub.Subscribe(ctx, "emit", received.add))
	other := &inbox{}
	assert.Nil(pubsub.Subscribe(ctx, "other", other.add))

	assert.Nil(pubsub.Publish(ctx, "emit", "first"))
	assert.Nil(pubsub.Publish(ctx, "emit", "second"))

	assert.Eventually(received.list, []string{"first", "second"})
	assert.Len(other.list(), 0)
}

func TestRedisPubSubProvider_StopsWithContext(t *testing.T) {
	assert := test.NewAssertions(t)
	mr := miniredis.RunT(t)

	pubsub, err := NewPubSubProvider("redis://" + mr.Addr())
	assert.Nil(err)
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	received := &inbox{}
	assert.Nil(pubsub.Subscribe(ctx, "emit", received.add))
	assert.Nil(pubsub.Publish(context.Background(), "emit", "before"))
	assert.Eventually(received.list, []string{"before"})

	cancel()
	assert.Eventually(func() int { return len(mr.PubSubChannels("emit")) }, 0)
	assert.Nil(pubsub.Publish(context.Background(), "emit", "after"))
	assert.Equals(received.list(), []string{"before"})
}

// ------------------------------------------------------------------------------------------------------------------
// Fake Provider Tests
// ------------------------------------------------------------------------------------------------------------------

func TestFakePubSubProvider_PublishAndSubscribe(t *testing.T) {
	assert := test.NewAssertions(t)
	ctx := context.Background()
	pubsub := NewFakePubSubProvider()

	first := &inbox{}
	second := &inbox{}
	assert.Nil(pubsub.Subscribe(ctx, "topic", first.add))
	assert.Nil(pubsub.Subscribe(ctx, "topic", second.add))

	assert.Nil(pubsub.Publish(ctx, "topic", "hello"))
	assert.Nil(pubsub.Publish(ctx, "nobody", "lost"))

	assert.Equals(first.list(), []string{"hello"})
	assert.Equals(second.list(), []string{"hello"})
	assert.Equals(pubsub.Sent("topic"), 1)
	assert.Equals(pubsub.Received("topic"), 2)
	assert.Equals(pubsub.Sent("nobody"), 1)
	assert.Equals(pubsub.Received("nobody"), 0)
	assert.Nil(pubsub.Ping(ctx))
	assert.Nil(pubsub.Close())
}
