package domain

import "time"

// Envelope is the wire format of a room message on the shared broadcast
// channel. Every process, including the publisher's own, receives it
// through the same subscription path.
type Envelope struct {
	Room       Room      `json:"room"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}
