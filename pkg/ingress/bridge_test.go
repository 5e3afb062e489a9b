package ingress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentbus/core/pkg/events"
	"github.com/agentbus/core/pkg/events/adapters/memory"
	"github.com/agentbus/core/pkg/ingress"
)

type recordingEnqueuer struct {
	mu    sync.Mutex
	calls []struct {
		msgType  uint32
		priority uint8
		payload  []byte
	}
}

func (r *recordingEnqueuer) Enqueue(msgType uint32, payload []byte, priority uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		msgType  uint32
		priority uint8
		payload  []byte
	}{msgType, priority, payload})
	return nil
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestBridgeForwardsRawBytesPayload(t *testing.T) {
	bus := memory.New()
	defer bus.Close()
	enq := &recordingEnqueuer{}

	ctx := context.Background()
	if err := ingress.Bridge(ctx, bus, "agents.jobs", enq); err != nil {
		t.Fatalf("Bridge: %v", err)
	}

	if err := bus.Publish(ctx, "agents.jobs", events.Event{
		ID:      "1",
		Type:    "job.created",
		Payload: []byte("raw-payload"),
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.After(time.Second)
	for enq.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for bridged enqueue call")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	enq.mu.Lock()
	defer enq.mu.Unlock()
	if string(enq.calls[0].payload) != "raw-payload" {
		t.Fatalf("payload = %q, want %q", enq.calls[0].payload, "raw-payload")
	}
}
