package ingress

import (
	"context"
	"encoding/json"

	"github.com/agentbus/core/pkg/events"
	"github.com/agentbus/core/pkg/logger"
)

// Enqueuer is the subset of runtime.Runtime this adapter depends on. It
// is a local interface, not an import of pkg/runtime, so ingress stays
// usable against anything shaped like a frame sink in tests.
type Enqueuer interface {
	Enqueue(msgType uint32, payload []byte, priority uint8) error
}

// payloadEnvelope is what upstream publishers are expected to send: a
// routing type tag and priority alongside the opaque payload. If an
// incoming event's Payload isn't shaped this way, its raw bytes become
// the frame payload with msgType 0 and priority 0.
type payloadEnvelope struct {
	Type     uint32 `json:"type"`
	Priority uint8  `json:"priority"`
	Data     []byte `json:"data"`
}

// Bridge subscribes to topic on bus and forwards every received event
// into rt.Enqueue, giving the Dispatcher in pkg/worker a path for real,
// non-synthetic payloads (spec §4.D step 1, "real payloads from upstream
// otherwise"). Enqueue failures (ring full) are logged and counted by
// the runtime's own statistics; the subscription itself never blocks.
func Bridge(ctx context.Context, bus events.Bus, topic string, rt Enqueuer) error {
	log := logger.Component("ingress")
	return bus.Subscribe(ctx, topic, func(ctx context.Context, event events.Event) error {
		msgType, priority, data := decodePayload(event)
		if err := rt.Enqueue(msgType, data, priority); err != nil {
			log.Warn("dropped upstream event", "topic", topic, "event_id", event.ID, "error", err)
			return err
		}
		return nil
	})
}

func decodePayload(event events.Event) (msgType uint32, priority uint8, data []byte) {
	switch v := event.Payload.(type) {
	case []byte:
		return 0, 0, v
	case string:
		return 0, 0, []byte(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return 0, 0, nil
		}
		var env payloadEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
			return env.Type, env.Priority, env.Data
		}
		return 0, 0, raw
	}
}
