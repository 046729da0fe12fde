package reports

import (
	"context"
	"time"
)

// Update carries optional report field changes. Nil fields are left as-is.
type Update struct {
	Title    *string
	IsPublic *bool
	Sections *map[string]any
}

// Repo defines persistence operations for reports, shares and comments.
// MarkCompleted and MarkFailed are status-guarded: they only apply while
// the report is still generating, returning ErrTransitionRejected once a
// terminal state has been reached. Queue redelivery of a finished render
// job is therefore a safe no-op.
type Repo interface {
	Create(ctx context.Context, report Report) error
	GetByID(ctx context.Context, reportID string) (Report, error)
	ListByUser(ctx context.Context, userID, analysisID string, limit, offset int) ([]Report, error)
	UpdateFields(ctx context.Context, reportID, userID string, update Update) (Report, error)

	// MarkCompleted moves generating -> completed and records the artifact key.
	MarkCompleted(ctx context.Context, reportID, fileKey string, completedAt time.Time) error
	// MarkFailed moves generating -> failed.
	MarkFailed(ctx context.Context, reportID, errorMessage string, failedAt time.Time) error

	AddShare(ctx context.Context, share Share) error
	ListShares(ctx context.Context, reportID string) ([]Share, error)
	GetShareByCode(ctx context.Context, code string) (Share, error)
	IncrementAccess(ctx context.Context, reportID string) error

	AddComment(ctx context.Context, comment Comment) error
	ListComments(ctx context.Context, reportID string) ([]Comment, error)
}
