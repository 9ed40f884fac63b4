package queue

import (
	"context"
	"fmt"
	"sync"

	"saintplus-client/internal/events"
	"saintplus-client/internal/shared/telemetry"
)

// ChannelQueue carries jobs over the in-process event bus.
type ChannelQueue struct {
	bus *events.Bus
	wg  sync.WaitGroup
}

func NewChannelQueue(bus *events.Bus) *ChannelQueue {
	return &ChannelQueue{bus: bus}
}

// Send publishes the job on the transcript parse topic.
func (q *ChannelQueue) Send(ctx context.Context, job ParseJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.bus.Publish(events.TopicTranscriptParse, job); err != nil {
		return fmt.Errorf("publish parse job: %w", err)
	}
	return nil
}

// Consume runs handler for each job in a background goroutine until ctx is done.
func (q *ChannelQueue) Consume(ctx context.Context, handler Handler) error {
	messages, err := q.bus.Subscribe(ctx, events.TopicTranscriptParse)
	if err != nil {
		return fmt.Errorf("subscribe parse jobs: %w", err)
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		// Redeliveries carry the same UUID.
		attempts := map[string]int{}
		for msg := range messages {
			attempts[msg.UUID]++
			attempt := attempts[msg.UUID]

			err := handler(msg.Context(), msg.Payload)
			if settle(err, attempt) {
				delete(attempts, msg.UUID)
				if err != nil {
					telemetry.Error("queue.job_dropped", map[string]any{"message_id": msg.UUID, "attempt": attempt, "err": err})
				}
				msg.Ack()
				continue
			}
			telemetry.Warn("queue.job_retry", map[string]any{"message_id": msg.UUID, "attempt": attempt, "err": err})
			msg.Nack()
		}
	}()
	return nil
}

// Close waits for the consumer goroutine, which exits once the Consume
// context is done or the bus is closed.
func (q *ChannelQueue) Close() error {
	q.wg.Wait()
	return nil
}

var _ Queue = (*ChannelQueue)(nil)
