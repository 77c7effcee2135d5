package ws

import (
	"context"
	"encoding/json"
)

// Disconnect reasons reported to the OnDisconnect callback.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportError   = "transport error"
)

// IStream is one duplex event-stream connection to the backend. Connect
// may be called again after a disconnect; callbacks set before Connect
// survive reconnects.
type IStream interface {
	Connect(ctx context.Context, token string) error
	Emit(event string, payload any) error
	OnEvent(fn func(name string, data json.RawMessage))
	OnDisconnect(fn func(reason string))
	Close() error
}
