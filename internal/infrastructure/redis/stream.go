package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one delivered stream record: the broker-assigned id plus the flat
// field map appended by the producer.
type Entry struct {
	ID     string
	Values map[string]interface{}
}

// Stream wraps one Redis stream consumed under a consumer group.
type Stream struct {
	client   *redis.Client
	name     string
	group    string
	consumer string
}

func NewStream(client *redis.Client, name, group, consumer string) *Stream {
	return &Stream{
		client:   client,
		name:     name,
		group:    group,
		consumer: consumer,
	}
}

func (s *Stream) Name() string { return s.name }

// EnsureGroup creates the consumer group from the beginning of the stream,
// creating the stream itself if it does not exist yet. A group that already
// exists is success.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.name, s.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("create group %s on %s: %w", s.group, s.name, err)
	}
	return nil
}

// Claim reads up to count entries not yet delivered to any consumer in the
// group (the ">" cursor), blocking up to block when the stream is idle.
// An idle timeout yields an empty batch, not an error.
func (s *Stream) Claim(ctx context.Context, count int, block time.Duration) ([]Entry, error) {
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.name, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read group %s on %s: %w", s.group, s.name, err)
	}

	var entries []Entry
	for _, stream := range res {
		for _, msg := range stream.Messages {
			entries = append(entries, Entry{ID: msg.ID, Values: msg.Values})
		}
	}
	return entries, nil
}

// Ack removes the entry from the group's pending list.
func (s *Stream) Ack(ctx context.Context, id string) error {
	if err := s.client.XAck(ctx, s.name, s.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", id, s.name, err)
	}
	return nil
}

// Append adds an entry with a broker-assigned id to an arbitrary stream.
// Used for dead-letter records and requeueing.
func (s *Stream) Append(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", stream, err)
	}
	return id, nil
}

// IsNoGroup reports whether err is the broker telling us the consumer group
// (or the stream) vanished, e.g. after a Redis flush. The loop self-heals by
// recreating the group.
func IsNoGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
