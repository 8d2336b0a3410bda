package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrChannelClosed is returned by Submit after the channel has shut down.
var ErrChannelClosed = errors.New("worker channel closed")

// defaultBuffer sizes the request and response queues. Submissions beyond
// the buffer block the submitter until the worker catches up.
const defaultBuffer = 16

// Channel runs the dispatcher in an isolated background goroutine. Requests
// and responses cross as serialized messages only: Submit marshals the
// envelope and the worker decodes its own copy, so no mutable state is shared
// with the submitting side.
type Channel struct {
	dispatcher *Dispatcher
	logger     zerolog.Logger

	requests  chan []byte
	responses chan Envelope
	done      chan struct{}

	startOnce sync.Once
}

// NewChannel constructs a Channel around the dispatcher. Start must be called
// before the channel accepts requests.
func NewChannel(dispatcher *Dispatcher, logger zerolog.Logger) *Channel {
	return &Channel{
		dispatcher: dispatcher,
		logger:     logger,
		requests:   make(chan []byte, defaultBuffer),
		responses:  make(chan Envelope, defaultBuffer),
		done:       make(chan struct{}),
	}
}

// Start posts the single WORKER_READY message and launches the dispatch
// loop. Subsequent calls are no-ops. The loop runs until ctx is cancelled,
// after which the response stream is closed.
func (c *Channel) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.responses <- readyEnvelope()
		recordReady()
		c.logger.Info().Msg("worker channel ready")
		go c.run(ctx)
	})
}

// Submit queues one serialized request. Fire-and-forget per call: the
// response, if any, arrives later on Responses tagged with the request's
// requestId.
func (c *Channel) Submit(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.requests <- raw:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses exposes the tagged response stream. Closed when the channel
// shuts down.
func (c *Channel) Responses() <-chan Envelope {
	return c.responses
}

// failQueued faults requests still queued at shutdown, so a Submit that won
// the enqueue race against teardown still receives a terminal ERROR instead
// of silently vanishing. Responses are posted best-effort: a full buffer
// with no remaining consumer drops them.
func (c *Channel) failQueued() {
	for {
		select {
		case raw := <-c.requests:
			requestID := ""
			var env Envelope
			if err := json.Unmarshal(raw, &env); err == nil {
				requestID = env.RequestID
				if requestID == "" {
					requestID = peekRequestID(env.Data)
				}
			}
			resp := errorEnvelope(requestID, ErrChannelClosed, "")
			select {
			case c.responses <- resp:
				recordResponse(resp.Type)
			default:
				c.logger.Warn().Str("request_id", requestID).Msg("dropping response for request abandoned at shutdown")
			}
		default:
			return
		}
	}
}

// run processes requests one at a time; a request's own response is never
// reordered relative to its submission.
func (c *Channel) run(ctx context.Context) {
	defer close(c.responses)
	defer close(c.done)
	defer c.failQueued()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("worker channel stopped")
			return
		case raw := <-c.requests:
			resp := c.dispatcher.Dispatch(raw)
			select {
			case c.responses <- resp:
			case <-ctx.Done():
				c.logger.Info().Msg("worker channel stopped")
				return
			}
		}
	}
}
