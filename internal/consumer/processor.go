// Package consumer carries the worker message protocol over Kafka for
// deployments where the background execution context is a separate process:
// requests are consumed from one topic, dispatched through the same engine as
// the in-process channel, and results produced to a reply topic.
package consumer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/forecast/internal/worker"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Producer writes result messages.
type Producer interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// Processor pulls request messages from Kafka, dispatches them, and produces
// the correlated responses. Malformed requests still yield an ERROR response
// and are committed, so a poison message cannot wedge the group.
type Processor struct {
	reader      Reader
	producer    Producer
	dispatcher  *worker.Dispatcher
	resultTopic string
	logger      zerolog.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, producer Producer, dispatcher *worker.Dispatcher, resultTopic string, logger zerolog.Logger) *Processor {
	return &Processor{
		reader:      reader,
		producer:    producer,
		dispatcher:  dispatcher,
		resultTopic: resultTopic,
		logger:      logger,
	}
}

// Run blocks, processing request messages until the context is cancelled.
// No WORKER_READY message is produced on this transport; consumer-group
// liveness covers readiness.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Warn().Err(err).Msg("fetch error")
			continue
		}

		resp := p.dispatcher.Dispatch(msg.Value)
		if err := p.publish(ctx, resp); err != nil {
			p.logger.Error().Err(err).
				Str("request_id", resp.RequestID).
				Msg("result publish failed, leaving request uncommitted")
			recordPublishError(p.resultTopic)
			continue
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.Warn().Err(err).Msg("commit error")
		} else {
			recordProcessed(msg.Topic, resp.Type)
		}
	}
}

func (p *Processor) publish(ctx context.Context, resp worker.Envelope) error {
	value, err := encodeEnvelope(resp)
	if err != nil {
		return err
	}
	return p.producer.WriteMessages(ctx, p.resultTopic, kafka.Message{
		Key:   []byte(resp.RequestID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "message_type", Value: []byte(resp.Type)},
		},
	})
}
