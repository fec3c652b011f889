package event

import (
	"errors"
	"fmt"
)

// ErrMissingBotID marks an event that can never be processed: without a bot
// id there is no tenant to apply the mutation to.
var ErrMissingBotID = errors.New("event has no bot_id field")

// EntityType names the business entity a bot event touches.
type EntityType string

const (
	EntityCustomer    EntityType = "customer"
	EntityLead        EntityType = "lead"
	EntityOrder       EntityType = "order"
	EntityAppointment EntityType = "appointment"
	EntityNone        EntityType = ""
)

// Table returns the entity-store table for the type, or "" for types this
// worker does not track. Unknown types are skipped, not rejected.
func (t EntityType) Table() string {
	switch t {
	case EntityCustomer:
		return "customers"
	case EntityLead:
		return "leads"
	case EntityOrder:
		return "orders"
	case EntityAppointment:
		return "appointments"
	default:
		return ""
	}
}

// Decoded is the typed projection of one stream entry. Fields keeps the raw
// payload untouched so a failed event can be forwarded to the dead-letter
// stream for offline replay.
type Decoded struct {
	StreamID   string
	EventID    string
	BotID      string
	Type       string
	EntityType EntityType
	EntityID   string
	Fields     map[string]string
}

// Decode projects a stream entry's flat field map into a Decoded event.
// The raw values arrive as map[string]interface{} from the stream client;
// non-string values are stringified. A missing bot_id yields ErrMissingBotID.
func Decode(streamID string, values map[string]interface{}) (*Decoded, error) {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			fields[k] = s
		} else {
			fields[k] = fmt.Sprint(v)
		}
	}

	d := &Decoded{
		StreamID:   streamID,
		EventID:    fields["event_id"],
		BotID:      fields["bot_id"],
		Type:       fields["type"],
		EntityType: EntityType(fields["entity_type"]),
		EntityID:   fields["entity_id"],
		Fields:     fields,
	}

	if d.BotID == "" {
		return d, fmt.Errorf("decode stream entry %s: %w", streamID, ErrMissingBotID)
	}

	return d, nil
}
