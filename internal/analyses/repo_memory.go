package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. It enforces the same
// status guards as the Postgres implementation.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Analysis // analysisId -> analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Analysis),
	}
}

// Create stores a new analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// ListByUser lists analyses newest-first, optionally filtered by status and paper.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID, status, paperID string, limit, offset int) ([]Analysis, error) {
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
	var out []Analysis
	for _, a := range r.data {
		if a.UserID != userID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		if paperID != "" && a.PaperID != paperID {
			continue
		}
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Analysis{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// MarkProcessing moves pending -> processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	return r.transition(ctx, analysisID, []string{StatusPending}, func(a *Analysis) {
		a.Status = StatusProcessing
		at := startedAt
		a.StartedAt = &at
	})
}

// MarkCompleted moves processing -> completed and stores the result.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, analysisID string, result map[string]any, processingTime int, completedAt time.Time) error {
	return r.transition(ctx, analysisID, []string{StatusProcessing}, func(a *Analysis) {
		a.Status = StatusCompleted
		a.Result = result
		pt := processingTime
		a.ProcessingTime = &pt
		at := completedAt
		a.CompletedAt = &at
		a.ErrorMessage = ""
	})
}

// MarkFailed moves pending or processing -> failed.
func (r *MemoryRepo) MarkFailed(ctx context.Context, analysisID, errorMessage string, completedAt time.Time) error {
	return r.transition(ctx, analysisID, []string{StatusPending, StatusProcessing}, func(a *Analysis) {
		a.Status = StatusFailed
		a.ErrorMessage = errorMessage
		at := completedAt
		a.CompletedAt = &at
	})
}

// UpdateFeedback stores user feedback on an analysis.
func (r *MemoryRepo) UpdateFeedback(ctx context.Context, analysisID, userID string, feedback map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[analysisID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	a.Feedback = feedback
	a.UpdatedAt = time.Now().UTC()
	r.data[analysisID] = a
	return nil
}

func (r *MemoryRepo) transition(ctx context.Context, analysisID string, from []string, apply func(*Analysis)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[analysisID]
	if !ok {
		return ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if a.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrTransitionRejected
	}
	apply(&a)
	a.UpdatedAt = time.Now().UTC()
	r.data[analysisID] = a
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
