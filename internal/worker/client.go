package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrMissingRequestID is returned when a correlated request has no identity.
var ErrMissingRequestID = errors.New("request has no requestId")

// Client is the submitting side of the channel. It matches responses to
// outstanding requests by requestId and tolerates responses arriving out of
// submission order. Responses nobody is waiting for are discarded, which is
// the protocol's at-most-once delivery for abandoned requests.
type Client struct {
	channel *Channel
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan Envelope
}

// NewClient constructs a Client. Run must be started for responses to be
// routed.
func NewClient(channel *Channel, logger zerolog.Logger) *Client {
	return &Client{
		channel: channel,
		logger:  logger,
		pending: make(map[string]chan Envelope),
	}
}

// Run drains the channel's response stream until it closes, routing each
// envelope to the waiter registered under its requestId.
func (c *Client) Run() {
	for env := range c.channel.Responses() {
		if env.Type == TypeWorkerReady {
			c.logger.Debug().Msg("worker ready")
			continue
		}

		c.mu.Lock()
		waiter, ok := c.pending[env.RequestID]
		if ok {
			delete(c.pending, env.RequestID)
		}
		c.mu.Unlock()

		if !ok {
			c.logger.Debug().Str("request_id", env.RequestID).Str("type", string(env.Type)).Msg("discarding unclaimed response")
			continue
		}
		waiter <- env
	}
}

// Request submits one envelope and blocks until its correlated response
// arrives or ctx expires. An expired request keeps running in the worker;
// its eventual response is discarded by Run.
func (c *Client) Request(ctx context.Context, env Envelope) (Envelope, error) {
	if env.RequestID == "" {
		return Envelope{}, ErrMissingRequestID
	}

	waiter := make(chan Envelope, 1)
	c.mu.Lock()
	c.pending[env.RequestID] = waiter
	c.mu.Unlock()

	abandon := func() {
		c.mu.Lock()
		delete(c.pending, env.RequestID)
		c.mu.Unlock()
	}

	if err := c.channel.Submit(ctx, env); err != nil {
		abandon()
		return Envelope{}, err
	}

	select {
	case resp := <-waiter:
		return resp, nil
	case <-ctx.Done():
		abandon()
		return Envelope{}, ctx.Err()
	}
}
