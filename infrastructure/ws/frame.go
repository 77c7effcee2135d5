package ws

import "encoding/json"

// Frame is the wire envelope for named events in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
