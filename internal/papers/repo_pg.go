package papers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements PapersRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const paperColumns = `
id, user_id, title, authors, abstract, doi, venue, publication_year, volume, pages,
tags, file_key, file_name, file_size, mime_type, content_hash, page_count, created_at, updated_at`

// Create inserts a new paper.
func (r *PGRepo) Create(ctx context.Context, paper Paper) error {
	const query = `
INSERT INTO papers (
    id, user_id, title, authors, abstract, doi, venue, publication_year, volume, pages,
    tags, file_key, file_name, file_size, mime_type, content_hash, page_count, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	authorsPayload, err := marshalStrings(paper.Authors)
	if err != nil {
		return err
	}
	tagsPayload, err := marshalStrings(paper.Tags)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		paper.ID,
		paper.UserID,
		paper.Title,
		authorsPayload,
		paper.Abstract,
		paper.DOI,
		paper.Venue,
		paper.PublicationYear,
		paper.Volume,
		paper.Pages,
		tagsPayload,
		paper.FileKey,
		paper.FileName,
		paper.FileSize,
		paper.MimeType,
		paper.ContentHash,
		paper.PageCount,
		paper.CreatedAt,
		paper.UpdatedAt,
	)
	return err
}

// GetByID fetches a paper by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, paperID string) (Paper, error) {
	const query = `
SELECT ` + paperColumns + `
FROM papers
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return scanPaper(r.DB.QueryRowContext(ctx, query, userID, paperID))
}

// GetByContentHash returns the paper with the same content hash, if any.
func (r *PGRepo) GetByContentHash(ctx context.Context, userID, contentHash string) (Paper, error) {
	const query = `
SELECT ` + paperColumns + `
FROM papers
WHERE user_id = $1 AND content_hash = $2
ORDER BY created_at DESC
LIMIT 1`
	return scanPaper(r.DB.QueryRowContext(ctx, query, userID, contentHash))
}

// ListByUser lists papers ordered newest-first, optionally filtered by a
// case-insensitive title substring.
func (r *PGRepo) ListByUser(ctx context.Context, userID, search string, limit, offset int) ([]Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + paperColumns + `
FROM papers
WHERE user_id = $1 AND ($2 = '' OR title ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := r.DB.QueryContext(ctx, query, userID, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, paper)
	}
	return out, rows.Err()
}

// UpdateFields applies a partial update and returns the updated paper.
func (r *PGRepo) UpdateFields(ctx context.Context, userID, paperID string, update Update) (Paper, error) {
	const query = `
UPDATE papers
SET title = COALESCE($1::text, title),
    authors = COALESCE($2::jsonb, authors),
    abstract = COALESCE($3::text, abstract),
    doi = COALESCE($4::text, doi),
    venue = COALESCE($5::text, venue),
    publication_year = COALESCE($6::int, publication_year),
    volume = COALESCE($7::text, volume),
    pages = COALESCE($8::text, pages),
    tags = COALESCE($9::jsonb, tags),
    updated_at = now()
WHERE user_id = $10 AND id = $11
RETURNING ` + paperColumns

	var authorsPayload, tagsPayload any
	if update.Authors != nil {
		data, err := marshalStrings(*update.Authors)
		if err != nil {
			return Paper{}, err
		}
		authorsPayload = data
	}
	if update.Tags != nil {
		data, err := marshalStrings(*update.Tags)
		if err != nil {
			return Paper{}, err
		}
		tagsPayload = data
	}

	return scanPaper(r.DB.QueryRowContext(ctx, query,
		update.Title,
		authorsPayload,
		update.Abstract,
		update.DOI,
		update.Venue,
		update.PublicationYear,
		update.Volume,
		update.Pages,
		tagsPayload,
		userID,
		paperID,
	))
}

// Delete removes a paper. Dependent analyses and reports cascade in the schema.
func (r *PGRepo) Delete(ctx context.Context, userID, paperID string) error {
	const query = `DELETE FROM papers WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userID, paperID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ PapersRepo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (Paper, error) {
	var p Paper
	var authorsRaw, tagsRaw []byte
	var year sql.NullInt64
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&authorsRaw,
		&p.Abstract,
		&p.DOI,
		&p.Venue,
		&year,
		&p.Volume,
		&p.Pages,
		&tagsRaw,
		&p.FileKey,
		&p.FileName,
		&p.FileSize,
		&p.MimeType,
		&p.ContentHash,
		&p.PageCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Paper{}, ErrNotFound
		}
		return Paper{}, err
	}
	if year.Valid {
		v := int(year.Int64)
		p.PublicationYear = &v
	}
	if len(authorsRaw) > 0 {
		_ = json.Unmarshal(authorsRaw, &p.Authors)
	}
	if len(tagsRaw) > 0 {
		_ = json.Unmarshal(tagsRaw, &p.Tags)
	}
	return p, nil
}

func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(values)
}
