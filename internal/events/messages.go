package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change operations carried by an ItemChangeMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ItemChangeMessage announces a committed item mutation. It carries only the
// id and version; consumers fetch the current row from the database.
type ItemChangeMessage struct {
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewItemChangeMessage builds a change message for the given operation.
func NewItemChangeMessage(op string, id, version int64) *ItemChangeMessage {
	return &ItemChangeMessage{
		Op:        op,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ItemChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ItemChangeMessageFromJSON decodes a message from JSON bytes.
func ItemChangeMessageFromJSON(data []byte) (*ItemChangeMessage, error) {
	var msg ItemChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op != OpUpsert && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown change op %q", msg.Op)
	}
	return &msg, nil
}
