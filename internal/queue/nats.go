package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"saintplus-client/internal/shared/telemetry"
)

const (
	streamName    = "EVENTS"
	parseSubject  = "events.transcripts.parse"
	parseDurable  = "transcript-parser"
	streamTimeout = 5 * time.Second
)

// NATSQueue carries jobs on a JetStream work-queue stream.
type NATSQueue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATSQueue connects to url and ensures the EVENTS stream exists.
func NewNATSQueue(ctx context.Context, url string) (*NATSQueue, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		telemetry.Warn("queue.nats.stream_ensure_failed", map[string]any{"stream": streamName, "err": err})
	}

	return &NATSQueue{nc: nc, js: js}, nil
}

// Send publishes the job and waits for the stream acknowledgement.
func (q *NATSQueue) Send(ctx context.Context, job ParseJob) error {
	data, err := EncodeJob(job)
	if err != nil {
		return fmt.Errorf("encode parse job: %w", err)
	}
	if _, err := q.js.Publish(ctx, parseSubject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", parseSubject, err)
	}
	return nil
}

// Consume attaches a durable consumer and blocks until ctx is done.
func (q *NATSQueue) Consume(ctx context.Context, handler Handler) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       parseDurable,
		FilterSubject: parseSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    MaxDeliveries,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		attempt := 1
		if meta, err := msg.Metadata(); err == nil {
			attempt = int(meta.NumDelivered)
		}
		err := handler(ctx, msg.Data())
		if settle(err, attempt) {
			if err != nil {
				telemetry.Error("queue.job_dropped", map[string]any{"subject": msg.Subject(), "attempt": attempt, "err": err})
				_ = msg.Term()
				return
			}
			_ = msg.Ack()
			return
		}
		telemetry.Warn("queue.job_retry", map[string]any{"subject": msg.Subject(), "attempt": attempt, "err": err})
		_ = msg.Nak()
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	telemetry.Info("queue.nats.subscribed", map[string]any{"subject": parseSubject, "durable": parseDurable})

	<-ctx.Done()
	cc.Stop()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// Close drains and closes the connection.
func (q *NATSQueue) Close() error {
	if q.nc == nil {
		return nil
	}
	return q.nc.Drain()
}

var _ Queue = (*NATSQueue)(nil)
