package ingress

import (
	"encoding/json"

	"github.com/agentbus/core/pkg/events"
)

func marshalEvent(e events.Event) ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalEvent(data []byte) (events.Event, error) {
	var e events.Event
	err := json.Unmarshal(data, &e)
	return e, err
}
