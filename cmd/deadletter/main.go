package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	go_redis "github.com/redis/go-redis/v9"

	"github.com/BogdanMod/lego-bot-sub002/internal/infrastructure/redis"
)

// Operator tool for the dead-letter stream: list recent failures, or push
// one back onto the main stream for reprocessing.

var metaFields = []string{"original_event_id", "original_stream", "error_code", "error_message", "failed_at"}

func main() {
	list := flag.Int("list", 0, "print the newest N dead-letter records")
	requeue := flag.String("requeue", "", "re-append the record with this id to the events stream and delete it")
	flag.Parse()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	dlqStream := envOr("EVENTS_DLQ_STREAM", "bot:events:dead")
	eventsStream := envOr("EVENTS_STREAM", "bot:events")

	ctx := context.Background()
	client, err := redis.NewClient(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to redis: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	switch {
	case *list > 0:
		if err := listRecords(ctx, client, dlqStream, *list); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	case *requeue != "":
		if err := requeueRecord(ctx, client, dlqStream, eventsStream, *requeue); err != nil {
			fmt.Fprintf(os.Stderr, "Requeue failed: %v\n", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func listRecords(ctx context.Context, client *go_redis.Client, stream string, n int) error {
	total, err := client.XLen(ctx, stream).Result()
	if err != nil {
		return err
	}

	msgs, err := client.XRevRangeN(ctx, stream, "+", "-", int64(n)).Result()
	if err != nil {
		return err
	}

	fmt.Printf("--- Dead letters (%d of %d) ---\n", len(msgs), total)
	for _, msg := range msgs {
		fmt.Printf("ID: %s | Original: %v | Error: %v | Failed: %v\n",
			msg.ID, msg.Values["original_event_id"], msg.Values["error_message"], msg.Values["failed_at"])
	}
	return nil
}

func requeueRecord(ctx context.Context, client *go_redis.Client, dlqStream, eventsStream, id string) error {
	msgs, err := client.XRange(ctx, dlqStream, id, id).Result()
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("record %s not found in %s", id, dlqStream)
	}

	// Strip the failure metadata; everything else is the original payload.
	values := make(map[string]interface{}, len(msgs[0].Values))
	for k, v := range msgs[0].Values {
		values[k] = v
	}
	for _, k := range metaFields {
		delete(values, k)
	}

	newID, err := client.XAdd(ctx, &go_redis.XAddArgs{Stream: eventsStream, Values: values}).Result()
	if err != nil {
		return err
	}

	if err := client.XDel(ctx, dlqStream, id).Err(); err != nil {
		return err
	}

	fmt.Printf("Requeued %s as %s on %s\n", id, newID, eventsStream)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
