package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pulsex/errors"
)

// The protocol is a closed tagged union: one JSON frame per event,
// discriminated by the event name, with a fixed payload schema per tag.
// Anything that does not decode and validate is dropped at the boundary.

type Name string

const (
	ClientPing        Name = "client:ping"
	ClientJoinRoom    Name = "client:joinRoom"
	ClientLeaveRoom   Name = "client:leaveRoom"
	ClientRoomMessage Name = "client:roomMessage"

	ServerWelcome     Name = "server:welcome"
	ServerPong        Name = "server:pong"
	ServerRoomJoined  Name = "server:roomJoined"
	ServerRoomLeft    Name = "server:roomLeft"
	ServerRoomMessage Name = "server:roomMessage"
	ServerRateLimited Name = "server:rateLimited"
)

type frame struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var validate = validator.New()

// ClientEvent is the closed set of events a client may send.
type ClientEvent interface {
	clientEvent()
}

type Ping struct{}

type JoinRoom struct {
	Room string `json:"room" validate:"required,max=64"`
}

type LeaveRoom struct{}

type RoomMessage struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func (Ping) clientEvent()        {}
func (JoinRoom) clientEvent()    {}
func (LeaveRoom) clientEvent()   {}
func (RoomMessage) clientEvent() {}

// Decode parses a single inbound frame into its typed event.
// Unknown tags, undecodable payloads and validation failures all return
// ErrInvalidPayload; the dispatcher drops those silently.
func Decode(raw []byte) (ClientEvent, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	switch f.Event {
	case ClientPing:
		return Ping{}, nil
	case ClientLeaveRoom:
		return LeaveRoom{}, nil
	case ClientJoinRoom:
		var e JoinRoom
		if err := decodePayload(f.Data, &e); err != nil {
			return nil, err
		}
		e.Room = strings.TrimSpace(e.Room)
		if e.Room == "" {
			return nil, errors.ErrInvalidPayload
		}
		return e, nil
	case ClientRoomMessage:
		var e RoomMessage
		if err := decodePayload(f.Data, &e); err != nil {
			return nil, err
		}
		if strings.TrimSpace(e.Text) == "" {
			return nil, errors.ErrInvalidPayload
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown event %q", errors.ErrInvalidPayload, f.Event)
	}
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errors.ErrInvalidPayload
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

// ServerEvent is the closed set of events the hub may push to a client.
type ServerEvent interface {
	EventName() Name
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Welcome struct {
	User        User      `json:"user"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type Pong struct {
	TS time.Time `json:"ts"`
}

type RoomJoined struct {
	Room string `json:"room"`
}

type RoomLeft struct{}

type RoomMessageOut struct {
	Room   string    `json:"room"`
	User   User      `json:"user"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

type RateLimited struct {
	Scope        string `json:"scope"`
	RetryAfterMs int64  `json:"retryAfterMs"`
}

func (Welcome) EventName() Name        { return ServerWelcome }
func (Pong) EventName() Name           { return ServerPong }
func (RoomJoined) EventName() Name     { return ServerRoomJoined }
func (RoomLeft) EventName() Name       { return ServerRoomLeft }
func (RoomMessageOut) EventName() Name { return ServerRoomMessage }
func (RateLimited) EventName() Name    { return ServerRateLimited }

// Encode wraps a server event into its outbound frame.
func Encode(e ServerEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: e.EventName(), Data: data})
}
