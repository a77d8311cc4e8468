package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

type emissionEnvelope struct {
	Room   string          `json:"room"`
	Except []string        `json:"except,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// PubSubEmitter publishes emissions on a pub/sub channel so that every
// instance can deliver them to its own sessions.
type PubSubEmitter struct {
	provider f.PubSubProvider
	channel  string
}

func NewPubSubEmitter(provider f.PubSubProvider, channel string) *PubSubEmitter {
	return &PubSubEmitter{provider: provider, channel: channel}
}

func (e *PubSubEmitter) Emit(ctx context.Context, em f.Emission) error {
	data, err := json.Marshal(em.Data)
	if err != nil {
		return fmt.Errorf("encode %s emission: %w", em.Event, err)
	}
	payload, err := json.Marshal(emissionEnvelope{
		Room:   em.Room,
		Except: em.Except,
		Event:  em.Event,
		Data:   data,
	})
	if err != nil {
		return err
	}
	return e.provider.Publish(ctx, e.channel, string(payload))
}

// RelayEmissions forwards emissions published on channel to target until
// ctx is done.
func RelayEmissions(ctx context.Context, provider f.PubSubProvider, channel string, target f.RoomEmitter) error {
	return provider.Subscribe(ctx, channel, func(message string) {
		var env emissionEnvelope
		if err := json.Unmarshal([]byte(message), &env); err != nil {
			log.Warn("dropping malformed emission: %v", err)
			return
		}
		err := target.Emit(ctx, f.Emission{
			Room:   env.Room,
			Except: env.Except,
			Event:  env.Event,
			Data:   env.Data,
		})
		if err != nil {
			log.Error("relay %s to %q failed: %v", env.Event, env.Room, err)
		}
	})
}

// RecordingEmitter keeps every emission in memory.
type RecordingEmitter struct {
	mu        sync.Mutex
	emissions []f.Emission
}

func NewRecordingEmitter() *RecordingEmitter {
	return &RecordingEmitter{}
}

func (r *RecordingEmitter) Emit(ctx context.Context, em f.Emission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, em)
	return nil
}

func (r *RecordingEmitter) Emissions() []f.Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]f.Emission{}, r.emissions...)
}

func (r *RecordingEmitter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emissions)
}

