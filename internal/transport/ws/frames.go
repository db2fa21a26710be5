package ws

import "github.com/go-notify-nosql/internal/domain"

// Frame types exchanged over the socket.
const (
	TypeJoin   = "join"
	TypeDrain  = "drain"
	TypePing   = "ping"
	TypeJoined = "joined"
	TypeReplay = "replay"
	TypePong   = "pong"
	TypeError  = "error"
	TypeEvent  = "event"
)

// inbound is any frame a client may send.
type inbound struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	Token  string `json:"token,omitempty"`
}

type controlFrame struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

type replayFrame struct {
	Type   string            `json:"type"`
	Events []domain.Envelope `json:"events"`
}

type eventFrame struct {
	Type string `json:"type"`
	domain.Envelope
}
