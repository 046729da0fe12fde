package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analyses. The Mark* methods are
// status-guarded: they only apply when the row is in the expected source
// state, returning ErrTransitionRejected otherwise. That guard is what makes
// queue redelivery of already-processed jobs a safe no-op.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID, status, paperID string, limit, offset int) ([]Analysis, error)

	// MarkProcessing moves pending -> processing.
	MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error
	// MarkCompleted moves processing -> completed and stores the result.
	MarkCompleted(ctx context.Context, analysisID string, result map[string]any, processingTime int, completedAt time.Time) error
	// MarkFailed moves pending or processing -> failed.
	MarkFailed(ctx context.Context, analysisID, errorMessage string, completedAt time.Time) error

	UpdateFeedback(ctx context.Context, analysisID, userID string, feedback map[string]any) error
}
