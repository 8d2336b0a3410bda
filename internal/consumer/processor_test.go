package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/forecast/internal/analysis"
	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/forecast"
	"example.com/forecast/internal/worker"
)

type stubReader struct {
	messages  []kafka.Message
	committed []kafka.Message
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubProducer struct {
	written []kafka.Message
	topics  []string
	err     error
}

func (p *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.written = append(p.written, msgs...)
	return nil
}

func newProcessor(reader Reader, producer Producer) *Processor {
	engine := forecast.NewEngine(zerolog.Nop())
	dispatcher := worker.NewDispatcher(engine, analysis.NewAnalyzer(), zerolog.Nop())
	return NewProcessor(reader, producer, dispatcher, "forecast_results", zerolog.Nop())
}

func predictMessage(t *testing.T, requestID string) kafka.Message {
	t.Helper()
	env, err := worker.NewRequestEnvelope(worker.TypePredict, requestID, worker.PredictRequest{
		RequestID: requestID,
		Logs: []domain.HealthLogEntry{
			{Date: "2024-01-01", Metrics: map[string]any{"BPM": 60.0}},
			{Date: "2024-01-02", Metrics: map[string]any{"BPM": 62.0}},
			{Date: "2024-01-03", Metrics: map[string]any{"BPM": 64.0}},
		},
		Metric:    "BPM",
		DaysAhead: 2,
	})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: "forecast_requests", Value: raw}
}

func messageType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "message_type" {
			return string(h.Value)
		}
	}
	return ""
}

func TestProcessorDispatchesAndCommits(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{predictMessage(t, "k-1")}}
	producer := &stubProducer{}

	err := newProcessor(reader, producer).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, producer.written, 1)
	assert.Equal(t, []string{"forecast_results"}, producer.topics)
	assert.Equal(t, "k-1", string(producer.written[0].Key))
	assert.Equal(t, string(worker.TypePredictResult), messageType(producer.written[0]))

	var resp worker.Envelope
	require.NoError(t, json.Unmarshal(producer.written[0].Value, &resp))
	assert.Equal(t, worker.TypePredictResult, resp.Type)
	assert.Equal(t, "k-1", resp.RequestID)

	var result domain.PredictionResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Len(t, result.Predictions, 2)

	require.Len(t, reader.committed, 1)
}

func TestProcessorCommitsPoisonMessages(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{{Topic: "forecast_requests", Value: []byte("{broken")}}}
	producer := &stubProducer{}

	err := newProcessor(reader, producer).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	// A malformed request still produces an ERROR response and is committed,
	// so it cannot wedge the consumer group.
	require.Len(t, producer.written, 1)
	assert.Equal(t, string(worker.TypeError), messageType(producer.written[0]))
	require.Len(t, reader.committed, 1)
}

func TestProcessorLeavesUncommittedOnPublishFailure(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{predictMessage(t, "k-2")}}
	producer := &stubProducer{err: errors.New("broker unavailable")}

	err := newProcessor(reader, producer).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, reader.committed)
}

func TestProcessorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{messages: []kafka.Message{predictMessage(t, "k-3")}}
	producer := &stubProducer{}

	err := newProcessor(reader, producer).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, producer.written)
}
