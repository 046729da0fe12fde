package papers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of PapersRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Paper // userId -> papers
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string][]Paper),
	}
}

// Create stores a paper for a user.
func (r *MemoryRepo) Create(ctx context.Context, paper Paper) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[paper.UserID] = append(r.data[paper.UserID], paper)
	return nil
}

// GetByID returns a paper by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, paperID string) (Paper, error) {
	if err := ctx.Err(); err != nil {
		return Paper{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.data[userID] {
		if p.ID == paperID {
			return p, nil
		}
	}
	return Paper{}, ErrNotFound
}

// GetByContentHash returns the newest paper with the given content hash.
func (r *MemoryRepo) GetByContentHash(ctx context.Context, userID, contentHash string) (Paper, error) {
	if err := ctx.Err(); err != nil {
		return Paper{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	papers := r.data[userID]
	for i := len(papers) - 1; i >= 0; i-- {
		if papers[i].ContentHash == contentHash {
			return papers[i], nil
		}
	}
	return Paper{}, ErrNotFound
}

// ListByUser returns papers for a user, newest first, honoring limit/offset
// and an optional case-insensitive title substring filter.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID, search string, limit, offset int) ([]Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	userPapers := r.data[userID]
	papers := make([]Paper, 0, len(userPapers))
	for _, p := range userPapers {
		if search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(search)) {
			continue
		}
		papers = append(papers, p)
	}
	r.mu.RUnlock()

	if len(papers) == 0 || offset >= len(papers) {
		return []Paper{}, nil
	}

	sort.Slice(papers, func(i, j int) bool {
		return papers[i].CreatedAt.After(papers[j].CreatedAt)
	})

	end := len(papers)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return papers[offset:end], nil
}

// UpdateFields applies a partial update and returns the updated paper.
func (r *MemoryRepo) UpdateFields(ctx context.Context, userID, paperID string, update Update) (Paper, error) {
	if err := ctx.Err(); err != nil {
		return Paper{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	papers := r.data[userID]
	for i := range papers {
		if papers[i].ID != paperID {
			continue
		}
		if update.Title != nil {
			papers[i].Title = *update.Title
		}
		if update.Authors != nil {
			papers[i].Authors = append([]string(nil), (*update.Authors)...)
		}
		if update.Abstract != nil {
			papers[i].Abstract = *update.Abstract
		}
		if update.DOI != nil {
			papers[i].DOI = *update.DOI
		}
		if update.Venue != nil {
			papers[i].Venue = *update.Venue
		}
		if update.PublicationYear != nil {
			year := *update.PublicationYear
			papers[i].PublicationYear = &year
		}
		if update.Volume != nil {
			papers[i].Volume = *update.Volume
		}
		if update.Pages != nil {
			papers[i].Pages = *update.Pages
		}
		if update.Tags != nil {
			papers[i].Tags = append([]string(nil), (*update.Tags)...)
		}
		papers[i].UpdatedAt = time.Now().UTC()
		r.data[userID] = papers
		return papers[i], nil
	}
	return Paper{}, ErrNotFound
}

// Delete removes a paper.
func (r *MemoryRepo) Delete(ctx context.Context, userID, paperID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	papers := r.data[userID]
	for i := range papers {
		if papers[i].ID == paperID {
			r.data[userID] = append(papers[:i], papers[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

var _ PapersRepo = (*MemoryRepo)(nil)
