package event

import "time"

// Notification is the compact "something changed" signal fanned out to live
// dashboard subscribers after an event commits. It carries just enough for
// the dashboard to refresh the right view; the entity store stays the source
// of truth.
type Notification struct {
	EventID     string     `json:"event_id"`
	Type        string     `json:"type"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id,omitempty"`
	BotID       string     `json:"bot_id"`
	ProcessedAt time.Time  `json:"processed_at"`
}
