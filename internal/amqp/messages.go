package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"wallet/internal/core"
)

// EntrySyncMessage asks the worker to copy one entry to the spreadsheet.
// It carries only the key; the worker reads the entry from the database.
type EntrySyncMessage struct {
	Variant   core.Variant `json:"variant"`
	ID        int64        `json:"id"`
	Version   int64        `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewEntrySyncMessage(v core.Variant, id, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		Variant:   v,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON decodes a message and rejects unknown variants.
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Variant.IsValid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidVariant, msg.Variant)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid entry id %d", msg.ID)
	}
	return &msg, nil
}
