package queue

import (
	"encoding/json"
	"fmt"
)

// Message kinds understood by the worker.
const (
	KindAnalysis = "analysis"
	KindReport   = "report"
)

// Message is the payload sent to downstream queue consumers. Exactly one of
// AnalysisID or ReportID is set, according to Kind.
type Message struct {
	Kind       string `json:"kind"`
	AnalysisID string `json:"analysisId,omitempty"`
	ReportID   string `json:"reportId,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// Validate checks the kind/ID pairing.
func (m Message) Validate() error {
	switch m.Kind {
	case KindAnalysis:
		if m.AnalysisID == "" {
			return fmt.Errorf("analysis message missing analysisId")
		}
	case KindReport:
		if m.ReportID == "" {
			return fmt.Errorf("report message missing reportId")
		}
	default:
		return fmt.Errorf("unknown message kind: %q", m.Kind)
	}
	return nil
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
