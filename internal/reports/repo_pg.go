package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const reportColumns = `
id, analysis_id, user_id, title, format, template_id, status, sections, file_key, error_message,
is_public, access_count, created_at, updated_at`

const shareColumns = `
id, report_id, share_code, shared_by, access_type, recipients, expires_at, created_at`

const commentColumns = `
id, report_id, parent_id, user_id, content, resolved, created_at, updated_at`

// Create inserts a new report.
func (r *PGRepo) Create(ctx context.Context, report Report) error {
	const query = `
INSERT INTO reports (
    id, analysis_id, user_id, title, format, template_id, status, sections, file_key, error_message,
    is_public, access_count, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14)`

	sectionsPayload, err := marshalJSONMap(report.Sections)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		report.ID,
		report.AnalysisID,
		report.UserID,
		report.Title,
		report.Format,
		report.TemplateID,
		report.Status,
		sectionsPayload,
		report.FileKey,
		report.ErrorMessage,
		report.IsPublic,
		report.AccessCount,
		report.CreatedAt,
		report.UpdatedAt,
	)
	return err
}

// GetByID returns a report by ID.
func (r *PGRepo) GetByID(ctx context.Context, reportID string) (Report, error) {
	const query = `
SELECT ` + reportColumns + `
FROM reports
WHERE id = $1
LIMIT 1`
	return scanReport(r.DB.QueryRowContext(ctx, query, reportID))
}

// ListByUser lists reports for a user ordered newest-first, optionally
// filtered by owning analysis.
func (r *PGRepo) ListByUser(ctx context.Context, userID, analysisID string, limit, offset int) ([]Report, error) {
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
SELECT ` + reportColumns + `
FROM reports
WHERE user_id = $1 AND ($2 = '' OR analysis_id::text = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := r.DB.QueryContext(ctx, query, userID, analysisID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// UpdateFields applies a partial update to a report owned by the user.
func (r *PGRepo) UpdateFields(ctx context.Context, reportID, userID string, update Update) (Report, error) {
	var sectionsPayload any
	if update.Sections != nil {
		payload, err := marshalJSONMap(*update.Sections)
		if err != nil {
			return Report{}, err
		}
		sectionsPayload = payload
	}

	const query = `
UPDATE reports
SET title = COALESCE($1, title),
    is_public = COALESCE($2, is_public),
    sections = COALESCE($3::jsonb, sections),
    updated_at = now()
WHERE id = $4 AND user_id = $5
RETURNING ` + reportColumns

	return scanReport(r.DB.QueryRowContext(ctx, query,
		update.Title,
		update.IsPublic,
		sectionsPayload,
		reportID,
		userID,
	))
}

// MarkCompleted moves generating -> completed and records the artifact key.
func (r *PGRepo) MarkCompleted(ctx context.Context, reportID, fileKey string, completedAt time.Time) error {
	const query = `
UPDATE reports
SET status = 'completed',
    file_key = $1,
    error_message = '',
    updated_at = $2
WHERE id = $3 AND status = 'generating'`
	return r.execGuarded(ctx, query, fileKey, completedAt, reportID)
}

// MarkFailed moves generating -> failed.
func (r *PGRepo) MarkFailed(ctx context.Context, reportID, errorMessage string, failedAt time.Time) error {
	const query = `
UPDATE reports
SET status = 'failed',
    error_message = $1,
    updated_at = $2
WHERE id = $3 AND status = 'generating'`
	return r.execGuarded(ctx, query, errorMessage, failedAt, reportID)
}

// AddShare inserts a new share record. Shares are append-only.
func (r *PGRepo) AddShare(ctx context.Context, share Share) error {
	const query = `
INSERT INTO report_shares (
    id, report_id, share_code, shared_by, access_type, recipients, expires_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`

	recipientsPayload, err := marshalStringList(share.Recipients)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		share.ID,
		share.ReportID,
		share.ShareCode,
		share.SharedBy,
		share.AccessType,
		recipientsPayload,
		share.ExpiresAt,
		share.CreatedAt,
	)
	return err
}

// ListShares returns all shares of a report, oldest first.
func (r *PGRepo) ListShares(ctx context.Context, reportID string) ([]Share, error) {
	const query = `
SELECT ` + shareColumns + `
FROM report_shares
WHERE report_id = $1
ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, share)
	}
	return out, rows.Err()
}

// GetShareByCode resolves a share code.
func (r *PGRepo) GetShareByCode(ctx context.Context, code string) (Share, error) {
	const query = `
SELECT ` + shareColumns + `
FROM report_shares
WHERE share_code = $1
LIMIT 1`
	return scanShare(r.DB.QueryRowContext(ctx, query, code))
}

// IncrementAccess bumps the report's access counter.
func (r *PGRepo) IncrementAccess(ctx context.Context, reportID string) error {
	const query = `
UPDATE reports
SET access_count = access_count + 1,
    updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, reportID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment inserts a comment.
func (r *PGRepo) AddComment(ctx context.Context, comment Comment) error {
	const query = `
INSERT INTO report_comments (
    id, report_id, parent_id, user_id, content, resolved, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.DB.ExecContext(ctx, query,
		comment.ID,
		comment.ReportID,
		comment.ParentID,
		comment.UserID,
		comment.Content,
		comment.Resolved,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	return err
}

// ListComments returns all comments of a report in creation order.
func (r *PGRepo) ListComments(ctx context.Context, reportID string) ([]Comment, error) {
	const query = `
SELECT ` + commentColumns + `
FROM report_comments
WHERE report_id = $1
ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, comment)
	}
	return out, rows.Err()
}

// execGuarded runs a status-guarded update. A zero row count means either
// the row is missing (ErrNotFound) or it already left the generating state
// (ErrTransitionRejected).
func (r *PGRepo) execGuarded(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	reportID := args[len(args)-1]
	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = $1`, reportID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTransitionRejected
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var report Report
	var sectionsRaw []byte
	var fileKey, errorMessage sql.NullString
	err := row.Scan(
		&report.ID,
		&report.AnalysisID,
		&report.UserID,
		&report.Title,
		&report.Format,
		&report.TemplateID,
		&report.Status,
		&sectionsRaw,
		&fileKey,
		&errorMessage,
		&report.IsPublic,
		&report.AccessCount,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	if len(sectionsRaw) > 0 {
		_ = json.Unmarshal(sectionsRaw, &report.Sections)
	}
	if fileKey.Valid {
		report.FileKey = fileKey.String
	}
	if errorMessage.Valid {
		report.ErrorMessage = errorMessage.String
	}
	return report, nil
}

func scanShare(row rowScanner) (Share, error) {
	var share Share
	var recipientsRaw []byte
	var expiresAt sql.NullTime
	err := row.Scan(
		&share.ID,
		&share.ReportID,
		&share.ShareCode,
		&share.SharedBy,
		&share.AccessType,
		&recipientsRaw,
		&expiresAt,
		&share.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Share{}, ErrNotFound
		}
		return Share{}, err
	}
	if len(recipientsRaw) > 0 {
		_ = json.Unmarshal(recipientsRaw, &share.Recipients)
	}
	if expiresAt.Valid {
		share.ExpiresAt = &expiresAt.Time
	}
	return share, nil
}

func scanComment(row rowScanner) (Comment, error) {
	var comment Comment
	var parentID sql.NullString
	err := row.Scan(
		&comment.ID,
		&comment.ReportID,
		&parentID,
		&comment.UserID,
		&comment.Content,
		&comment.Resolved,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, err
	}
	if parentID.Valid {
		comment.ParentID = &parentID.String
	}
	return comment, nil
}

func marshalJSONMap(value map[string]any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}

func marshalStringList(values []string) ([]byte, error) {
	if values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(values)
}
