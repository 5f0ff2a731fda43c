package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried by EntryEventMessage.
const (
	EventEntrySaved   = "entry.saved"
	EventEntryDeleted = "entry.deleted"
)

// EntryEventMessage announces that a daily entry changed. It carries only
// identifiers; consumers read the current state from storage.
type EntryEventMessage struct {
	Type      string    `json:"type"`
	EntryID   int64     `json:"entry_id"`
	ClientID  int64     `json:"client_id"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryEventMessage(eventType string, entryID, clientID int64, date string) *EntryEventMessage {
	return &EntryEventMessage{
		Type:      eventType,
		EntryID:   entryID,
		ClientID:  clientID,
		Date:      date,
		Timestamp: time.Now().UTC(),
	}
}

func (m *EntryEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventMessageFromJSON decodes and checks a message body.
func EntryEventMessageFromJSON(data []byte) (*EntryEventMessage, error) {
	var msg EntryEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventEntrySaved, EventEntryDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.EntryID <= 0 || msg.ClientID <= 0 {
		return nil, fmt.Errorf("event %s missing entry or client id", msg.Type)
	}
	return &msg, nil
}
