package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	values := map[string]interface{}{
		"event_id":    "E1",
		"bot_id":      "b1",
		"type":        "lead_created",
		"entity_type": "lead",
		"entity_id":   "L1",
		"extra":       "kept",
	}

	ev, err := Decode("1700000000000-0", values)
	require.NoError(t, err)

	assert.Equal(t, "1700000000000-0", ev.StreamID)
	assert.Equal(t, "E1", ev.EventID)
	assert.Equal(t, "b1", ev.BotID)
	assert.Equal(t, "lead_created", ev.Type)
	assert.Equal(t, EntityLead, ev.EntityType)
	assert.Equal(t, "L1", ev.EntityID)
	assert.Equal(t, "kept", ev.Fields["extra"])
}

func TestDecodeMissingBotID(t *testing.T) {
	ev, err := Decode("1-0", map[string]interface{}{
		"event_id": "E1",
		"type":     "lead_created",
	})

	require.ErrorIs(t, err, ErrMissingBotID)
	// The partial decode still carries the raw fields for dead-lettering.
	require.NotNil(t, ev)
	assert.Equal(t, "E1", ev.Fields["event_id"])
}

func TestDecodeStringifiesNonStringValues(t *testing.T) {
	ev, err := Decode("1-0", map[string]interface{}{
		"bot_id": "b1",
		"count":  int64(7),
	})

	require.NoError(t, err)
	assert.Equal(t, "7", ev.Fields["count"])
}

func TestEntityTypeTable(t *testing.T) {
	tests := []struct {
		entityType EntityType
		table      string
	}{
		{EntityCustomer, "customers"},
		{EntityLead, "leads"},
		{EntityOrder, "orders"},
		{EntityAppointment, "appointments"},
		{EntityNone, ""},
		{EntityType("unknown_type"), ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.table, tt.entityType.Table(), "entity type %q", tt.entityType)
	}
}
