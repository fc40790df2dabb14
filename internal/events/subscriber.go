package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one decoded ledger event. Returning an error leaves the
// message un-ACKed so the consumer group redelivers it.
type Handler func(ctx context.Context, event Event) error

const (
	readBatchSize = 10
	readBlock     = 5 * time.Second
)

// Subscriber consumes the ledger event stream through a Redis consumer group.
// The service uses it to keep the Redis read model in sync with committed
// ledger mutations.
type Subscriber struct {
	client   *redis.Client
	group    string
	consumer string
	handler  Handler
}

func NewSubscriber(client *redis.Client, group, consumer string, handler Handler) *Subscriber {
	return &Subscriber{
		client:   client,
		group:    group,
		consumer: consumer,
		handler:  handler,
	}
}

// Run blocks until ctx is cancelled, reading and dispatching events from the
// ledger stream. The consumer group is created on first use.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, LedgerEventsStream, s.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Printf("Ledger event subscriber started: group=%s, consumer=%s", s.group, s.consumer)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Ledger event subscriber stopping")
			return ctx.Err()
		default:
			if err := s.readBatch(ctx); err != nil {
				log.Printf("Error reading ledger events: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) readBatch(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{LedgerEventsStream, ">"},
		Count:    readBatchSize,
		Block:    readBlock,
	}).Result()

	if err == redis.Nil {
		return nil // No messages
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := s.dispatch(ctx, message); err != nil {
				log.Printf("Failed to process event %s: %v", message.ID, err)
				// Not ACKed: the group redelivers it later.
				continue
			}
			if err := s.client.XAck(ctx, LedgerEventsStream, s.group, message.ID).Err(); err != nil {
				log.Printf("Failed to ACK event %s: %v", message.ID, err)
			}
		}
	}

	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, message redis.XMessage) error {
	raw, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return s.handler(ctx, event)
}

// DecodeData re-decodes the loosely-typed Data field of an event into a
// concrete payload struct.
func DecodeData(event Event, out any) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode event data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", event.Type, err)
	}
	return nil
}
