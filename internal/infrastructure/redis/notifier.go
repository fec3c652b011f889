package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BogdanMod/lego-bot-sub002/internal/domain/event"

	"github.com/redis/go-redis/v9"
)

// Notifier fans processed-event signals out over pub/sub, one topic per bot.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func Topic(botID string) string {
	return fmt.Sprintf("bot:%s:events", botID)
}

func (n *Notifier) Publish(ctx context.Context, note event.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.client.Publish(ctx, Topic(note.BotID), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Topic(note.BotID), err)
	}

	return nil
}
