package reports

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. It enforces the same
// status guards as the Postgres implementation.
type MemoryRepo struct {
	mu       sync.RWMutex
	reports  map[string]Report    // reportId -> report
	shares   map[string][]Share   // reportId -> shares, append order
	byCode   map[string]string    // shareCode -> reportId
	comments map[string][]Comment // reportId -> comments, append order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		reports:  make(map[string]Report),
		shares:   make(map[string][]Share),
		byCode:   make(map[string]string),
		comments: make(map[string][]Comment),
	}
}

// Create stores a new report.
func (r *MemoryRepo) Create(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = report
	return nil
}

// GetByID returns a report by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, reportID string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[reportID]
	if !ok {
		return Report{}, ErrNotFound
	}
	return report, nil
}

// ListByUser lists reports newest-first, optionally filtered by analysis.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID, analysisID string, limit, offset int) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	var out []Report
	for _, report := range r.reports {
		if report.UserID != userID {
			continue
		}
		if analysisID != "" && report.AnalysisID != analysisID {
			continue
		}
		out = append(out, report)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Report{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// UpdateFields applies a partial update to a report owned by the user.
func (r *MemoryRepo) UpdateFields(ctx context.Context, reportID, userID string, update Update) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[reportID]
	if !ok || report.UserID != userID {
		return Report{}, ErrNotFound
	}
	if update.Title != nil {
		report.Title = *update.Title
	}
	if update.IsPublic != nil {
		report.IsPublic = *update.IsPublic
	}
	if update.Sections != nil {
		report.Sections = *update.Sections
	}
	report.UpdatedAt = time.Now().UTC()
	r.reports[reportID] = report
	return report, nil
}

// MarkCompleted moves generating -> completed and records the artifact key.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, reportID, fileKey string, completedAt time.Time) error {
	return r.transition(ctx, reportID, func(report *Report) {
		report.Status = StatusCompleted
		report.FileKey = fileKey
		report.ErrorMessage = ""
		report.UpdatedAt = completedAt
	})
}

// MarkFailed moves generating -> failed.
func (r *MemoryRepo) MarkFailed(ctx context.Context, reportID, errorMessage string, failedAt time.Time) error {
	return r.transition(ctx, reportID, func(report *Report) {
		report.Status = StatusFailed
		report.ErrorMessage = errorMessage
		report.UpdatedAt = failedAt
	})
}

// AddShare appends a share record.
func (r *MemoryRepo) AddShare(ctx context.Context, share Share) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[share.ReportID]; !ok {
		return ErrNotFound
	}
	r.shares[share.ReportID] = append(r.shares[share.ReportID], share)
	r.byCode[share.ShareCode] = share.ReportID
	return nil
}

// ListShares returns all shares of a report, oldest first.
func (r *MemoryRepo) ListShares(ctx context.Context, reportID string) ([]Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Share, len(r.shares[reportID]))
	copy(out, r.shares[reportID])
	return out, nil
}

// GetShareByCode resolves a share code.
func (r *MemoryRepo) GetShareByCode(ctx context.Context, code string) (Share, error) {
	if err := ctx.Err(); err != nil {
		return Share{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reportID, ok := r.byCode[code]
	if !ok {
		return Share{}, ErrNotFound
	}
	for _, share := range r.shares[reportID] {
		if share.ShareCode == code {
			return share, nil
		}
	}
	return Share{}, ErrNotFound
}

// IncrementAccess bumps the report's access counter.
func (r *MemoryRepo) IncrementAccess(ctx context.Context, reportID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	report.AccessCount++
	report.UpdatedAt = time.Now().UTC()
	r.reports[reportID] = report
	return nil
}

// AddComment appends a comment.
func (r *MemoryRepo) AddComment(ctx context.Context, comment Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[comment.ReportID]; !ok {
		return ErrNotFound
	}
	r.comments[comment.ReportID] = append(r.comments[comment.ReportID], comment)
	return nil
}

// ListComments returns all comments of a report in creation order.
func (r *MemoryRepo) ListComments(ctx context.Context, reportID string) ([]Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Comment, len(r.comments[reportID]))
	copy(out, r.comments[reportID])
	return out, nil
}

func (r *MemoryRepo) transition(ctx context.Context, reportID string, apply func(*Report)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if report.Status != StatusGenerating {
		return ErrTransitionRejected
	}
	apply(&report)
	r.reports[reportID] = report
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
