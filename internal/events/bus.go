// Package events is the in-process publish/subscribe bus. The session
// gateway, ingestion orchestrator and recommendation aggregator publish on it;
// front ends subscribe.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicSessionExpired         = "session.expired"
	TopicIngestionStage         = "ingestion.stage"
	TopicRecommendationsUpdated = "recommendations.updated"
	TopicTranscriptParse        = "transcripts.parse"
)

// Bus wraps a watermill Go channel pub/sub with JSON payloads.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus returns a bus that never blocks publishers on slow subscribers.
func NewBus() *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, NewZapAdapter())
	return &Bus{pubSub: pubSub}
}

// Publish marshals payload and publishes it on topic.
func (b *Bus) Publish(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	msg.Metadata.Set("published_at", time.Now().UTC().Format(time.RFC3339Nano))
	return b.pubSub.Publish(topic, msg)
}

// Subscribe returns raw messages for topic until ctx is done. Callers must
// Ack or Nack each message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Listen decodes each message on topic into T and calls fn until ctx is done.
// Messages that fail to decode are acked and dropped.
func Listen[T any](ctx context.Context, b *Bus, topic string, fn func(T)) error {
	messages, err := b.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			var payload T
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				msg.Ack()
				continue
			}
			fn(payload)
			msg.Ack()
		}
	}()
	return nil
}

// Close stops the bus and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
