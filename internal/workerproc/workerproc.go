package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"paperal-backend/internal/analyses"
	"paperal-backend/internal/queue"
	"paperal-backend/internal/reports"
)

// AnalysisProcessor runs an analysis job. Satisfied by analyses.Service.
type AnalysisProcessor interface {
	Process(ctx context.Context, analysisID string) error
}

// ReportRenderer runs a report render job. Satisfied by reports.Service.
type ReportRenderer interface {
	Render(ctx context.Context, reportID string) error
}

// Deps holds the job processors the worker dispatches to.
type Deps struct {
	Analyses AnalysisProcessor
	Reports  ReportRenderer
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a payload that cannot be decoded or validated. Such
// messages are unrecoverable and should be deleted without retry.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	Kind      string
	JobID     string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process " + e.Kind + " job"
	}
	return "process " + e.Kind + " job: " + e.Err.Error()
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// JobID returns the entity ID a message targets.
func JobID(msg queue.Message) string {
	if msg.Kind == queue.KindReport {
		return msg.ReportID
	}
	return msg.AnalysisID
}

// HandleMessage parses, validates, and dispatches a message payload to the
// processor for its kind.
func HandleMessage(ctx context.Context, deps Deps, body string) error {
	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	switch msg.Kind {
	case queue.KindAnalysis:
		if deps.Analyses == nil {
			return errors.New("analysis processor not configured")
		}
		ctxWithRequest := analyses.WithRequestID(ctx, msg.RequestID)
		if err := deps.Analyses.Process(ctxWithRequest, msg.AnalysisID); err != nil {
			return ErrProcess{Kind: msg.Kind, JobID: msg.AnalysisID, RequestID: msg.RequestID, Err: err}
		}
		return nil
	case queue.KindReport:
		if deps.Reports == nil {
			return errors.New("report renderer not configured")
		}
		ctxWithRequest := reports.WithRequestID(ctx, msg.RequestID)
		if err := deps.Reports.Render(ctxWithRequest, msg.ReportID); err != nil {
			return ErrProcess{Kind: msg.Kind, JobID: msg.ReportID, RequestID: msg.RequestID, Err: err}
		}
		return nil
	default:
		return ErrDecode{Meta: ComputeMeta(body), Err: errors.New("unknown message kind " + msg.Kind)}
	}
}
