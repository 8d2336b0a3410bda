// Package worker implements the message-passing boundary that moves forecast
// and analysis requests into a background execution context and returns
// correlated results. Payloads cross the boundary serialized; no references
// are shared between submitter and worker.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"example.com/forecast/internal/domain"
)

// MessageType discriminates worker protocol messages.
type MessageType string

const (
	TypePredict       MessageType = "PREDICT"
	TypeAnalyze       MessageType = "ANALYZE"
	TypePredictResult MessageType = "PREDICT_RESULT"
	TypeAnalyzeResult MessageType = "ANALYZE_RESULT"
	TypeError         MessageType = "ERROR"
	TypeWorkerReady   MessageType = "WORKER_READY"
)

// ErrUnknownMessageType is reported when a message carries a type outside the
// protocol.
var ErrUnknownMessageType = errors.New("unknown message type")

// Envelope is the wire form of one worker message. Each envelope is created
// by its sender, consumed exactly once by its receiver, and never retained;
// correlation across the boundary is entirely by RequestID.
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Stack     string          `json:"stack,omitempty"`
}

// PredictRequest is the payload of a PREDICT message.
type PredictRequest struct {
	Logs      []domain.HealthLogEntry `json:"logs"`
	AllLogs   []domain.HealthLogEntry `json:"allLogs,omitempty"`
	Metric    string                  `json:"metric"`
	DaysAhead int                     `json:"daysAhead"`
	ModelType string                  `json:"modelType,omitempty"`
	RequestID string                  `json:"requestId"`
}

// AnalyzeRequest is the payload of an ANALYZE message.
type AnalyzeRequest struct {
	Logs      []domain.HealthLogEntry `json:"logs"`
	AllLogs   []domain.HealthLogEntry `json:"allLogs,omitempty"`
	RequestID string                  `json:"requestId"`
}

// NewRequestEnvelope builds a request envelope with the payload serialized.
func NewRequestEnvelope(msgType MessageType, requestID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, RequestID: requestID, Data: data}, nil
}

// resultEnvelope wraps a computed result, echoing the request identity.
func resultEnvelope(msgType MessageType, requestID string, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorEnvelope(requestID, fmt.Errorf("encode %s payload: %w", msgType, err), "")
	}
	return Envelope{Type: msgType, RequestID: requestID, Data: data}
}

// errorEnvelope converts a dispatch failure into a structured ERROR message.
// RequestID is best-effort: it may be empty when the payload itself was
// malformed.
func errorEnvelope(requestID string, err error, stack string) Envelope {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	return Envelope{
		Type:      TypeError,
		RequestID: requestID,
		Error:     message,
		Stack:     stack,
	}
}

// readyEnvelope signals channel initialization; posted exactly once, before
// any request is accepted.
func readyEnvelope() Envelope {
	return Envelope{Type: TypeWorkerReady}
}

// peekRequestID extracts the requestId from a raw payload without requiring
// the rest of it to decode.
func peekRequestID(data json.RawMessage) string {
	var probe struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.RequestID
}
