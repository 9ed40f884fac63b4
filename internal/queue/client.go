// Package queue hands uploaded transcripts to the parse worker, either over the
// in-process event bus or a NATS JetStream stream.
package queue

import (
	"context"
	"errors"
)

// MaxDeliveries bounds redelivery of a job whose handler keeps failing.
const MaxDeliveries = 3

// ErrPermanent marks handler failures that must not be redelivered.
var ErrPermanent = errors.New("permanent failure")

// Client sends parse jobs to a queue backend.
type Client interface {
	Send(ctx context.Context, job ParseJob) error
}

// Handler processes one raw job payload.
type Handler func(ctx context.Context, body []byte) error

// Queue is a Client that can also deliver jobs to a Handler.
type Queue interface {
	Client
	// Consume delivers jobs to handler until ctx is done.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// settle reports whether a delivery is finished: it succeeded, failed
// permanently, or used its last attempt.
func settle(err error, attempt int) bool {
	return err == nil || errors.Is(err, ErrPermanent) || attempt >= MaxDeliveries
}
