// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/logging"
)

// Topic carries enrichment jobs.
const Topic = "reco.social.enrich"

// DefaultJobTimeout bounds one enrichment run.
const DefaultJobTimeout = 15 * time.Second

// DefaultQueueBuffer is the output buffer of the in-process pub/sub.
const DefaultQueueBuffer int64 = 256

// NewPubSub creates the in-process pub/sub enrichment jobs travel on.
// Messages published while no consumer is subscribed are dropped. A
// non-positive buffer uses DefaultQueueBuffer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPubSub(buffer int64, logger zerolog.Logger) *gochannel.GoChannel {
	if buffer <= 0 {
		buffer = DefaultQueueBuffer
	}
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: buffer},
		logging.NewWatermillAdapter(logger.With().Str("component", "social_pubsub").Logger()),
	)
}

// Enqueuer publishes enrichment jobs.
type Enqueuer struct {
	pub message.Publisher
}

// NewEnqueuer creates an enqueuer publishing on Topic.
func NewEnqueuer(pub message.Publisher) *Enqueuer {
	return &Enqueuer{pub: pub}
}

// Enqueue publishes job. It does not wait for the job to run.
func (e *Enqueuer) Enqueue(_ context.Context, job *Job) error {
	if job == nil {
		return errors.New("enqueue: nil job")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("ticket_id", job.TicketID)
	msg.Metadata.Set("request_id", job.RequestID)
	if err := e.pub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", Topic, err)
	}
	return nil
}

// ConsumerStats reports consumer throughput.
type ConsumerStats struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Malformed int64 `json:"malformed"`
	Enriched  int64 `json:"enriched"`
}

// Consumer runs the worker for every job on Topic. Every message is acked:
// enrichment is best effort and a failed run is not retried.
type Consumer struct {
	sub        message.Subscriber
	worker     *Worker
	jobTimeout time.Duration
	logger     zerolog.Logger

	received  atomic.Int64
	processed atomic.Int64
	malformed atomic.Int64
	enriched  atomic.Int64
}

// NewConsumer creates a consumer. A non-positive jobTimeout uses
// DefaultJobTimeout.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewConsumer(sub message.Subscriber, worker *Worker, jobTimeout time.Duration, logger zerolog.Logger) *Consumer {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	return &Consumer{
		sub:        sub,
		worker:     worker,
		jobTimeout: jobTimeout,
		logger:     logger.With().Str("component", "social_consumer").Logger(),
	}
}

// Run consumes jobs until ctx is canceled or the subscription closes.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.sub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", Topic, err)
	}
	c.logger.Info().Str("topic", Topic).Msg("social consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// Stats returns consumer counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Received:  c.received.Load(),
		Processed: c.processed.Load(),
		Malformed: c.malformed.Load(),
		Enriched:  c.enriched.Load(),
	}
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()
	c.received.Add(1)

	var job Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		c.malformed.Add(1)
		c.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed job")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	res := c.worker.Run(jobCtx, &job)
	cancel()

	c.processed.Add(1)
	if res.OK {
		c.enriched.Add(1)
	}
}
