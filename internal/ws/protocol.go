package ws

import (
	"encoding/json"
	"fmt"
)

// Envelope is a single named event frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the envelope data into v. Missing data leaves v untouched.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Event, err)
	}
	return nil
}

// Encode builds the wire frame for event with payload.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodeFrame parses one inbound wire frame. Frames without an event name
// are rejected.
func DecodeFrame(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return &env, nil
}
