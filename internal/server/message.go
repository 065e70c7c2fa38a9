package server

import (
	"encoding/json"
	"time"

	"github.com/lox/redenvelope/internal/game"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeStartDraw MessageType = "start_draw"
	MessageTypeStopDraw  MessageType = "stop_draw"
	MessageTypeFlip      MessageType = "flip"
	MessageTypeSnapshot  MessageType = "snapshot"

	// Server to client messages
	MessageTypeAck            MessageType = "ack"
	MessageTypeError          MessageType = "error"
	MessageTypeCard           MessageType = "card"
	MessageTypeRangeExhausted MessageType = "range_exhausted"
	MessageTypeProgress       MessageType = "progress"
	MessageTypeFinalized      MessageType = "finalized"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

// PositionData addresses one card.
type PositionData struct {
	Position int `json:"position"`
}

// StopDrawData stops a card, optionally on a chosen digit.
type StopDrawData struct {
	Position int  `json:"position"`
	Value    *int `json:"value,omitempty"`
}

// Server → Client Messages

type AckData struct {
	Op       MessageType `json:"op"`
	Position int         `json:"position"`
}

type ErrorData struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

type RangeExhaustedData struct {
	Position int    `json:"position"`
	Label    string `json:"label"`
}

type ProgressData struct {
	Locked int `json:"locked"`
	Count  int `json:"count"`
}

type FinalizedData struct {
	game.Result
	Mood  string `json:"mood,omitempty"`
	Claim string `json:"claim"`
}

// MessageFromEvent converts a session event into its wire form. Unknown
// events yield a nil message.
func MessageFromEvent(event game.Event) (*Message, error) {
	switch e := event.(type) {
	case game.CardChangedEvent:
		return NewMessage(MessageTypeCard, e.Card)
	case game.RangeExhaustedEvent:
		return NewMessage(MessageTypeRangeExhausted, RangeExhaustedData{
			Position: e.Position,
			Label:    game.PositionName(e.Position),
		})
	case game.ProgressEvent:
		return NewMessage(MessageTypeProgress, ProgressData{Locked: e.Locked, Count: e.Count})
	case game.FinalizedEvent:
		return NewMessage(MessageTypeFinalized, FinalizedData{
			Result: e.Result,
			Mood:   e.Result.Outcome.Mood(),
			Claim:  e.Result.ClaimMessage(),
		})
	default:
		return nil, nil
	}
}

// errorData describes err for the client.
func errorData(err error) ErrorData {
	return ErrorData{
		Code:        game.ErrorCode(err),
		Message:     err.Error(),
		Recoverable: game.IsUserCorrectable(err),
	}
}
