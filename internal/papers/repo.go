package papers

import "context"

// Update is a partial update applied to a paper. Nil fields are left unchanged.
type Update struct {
	Title           *string
	Authors         *[]string
	Abstract        *string
	DOI             *string
	Venue           *string
	PublicationYear *int
	Volume          *string
	Pages           *string
	Tags            *[]string
}

// PapersRepo defines persistence operations for papers.
type PapersRepo interface {
	Create(ctx context.Context, paper Paper) error
	GetByID(ctx context.Context, userID, paperID string) (Paper, error)
	GetByContentHash(ctx context.Context, userID, contentHash string) (Paper, error)
	ListByUser(ctx context.Context, userID, search string, limit, offset int) ([]Paper, error)
	UpdateFields(ctx context.Context, userID, paperID string, update Update) (Paper, error)
	Delete(ctx context.Context, userID, paperID string) error
}
