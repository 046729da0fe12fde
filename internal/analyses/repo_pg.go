package analyses

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

const analysisColumns = `
id, paper_id, user_id, analysis_type, parameters, status, result_data, error_message,
processing_time, feedback, version, created_at, started_at, completed_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
    id, paper_id, user_id, analysis_type, parameters, status, result_data, error_message,
    processing_time, feedback, version, created_at, started_at, completed_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	paramsPayload, err := marshalJSONB(analysis.Parameters)
	if err != nil {
		return err
	}
	var resultPayload, feedbackPayload any
	if analysis.Result != nil {
		resultPayload, err = json.Marshal(analysis.Result)
		if err != nil {
			return err
		}
	}
	if analysis.Feedback != nil {
		feedbackPayload, err = json.Marshal(analysis.Feedback)
		if err != nil {
			return err
		}
	}

	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.PaperID,
		analysis.UserID,
		analysis.AnalysisType,
		paramsPayload,
		analysis.Status,
		resultPayload,
		analysis.ErrorMessage,
		analysis.ProcessingTime,
		feedbackPayload,
		analysis.Version,
		analysis.CreatedAt,
		analysis.StartedAt,
		analysis.CompletedAt,
		analysis.UpdatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
}

// ListByUser lists analyses for a user ordered newest-first, optionally
// filtered by status and paper.
func (r *PGRepo) ListByUser(ctx context.Context, userID, status, paperID string, limit, offset int) ([]Analysis, error) {
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
SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1 AND ($2 = '' OR status = $2) AND ($3 = '' OR paper_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`

	rows, err := r.DB.QueryContext(ctx, query, userID, status, paperID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkProcessing moves pending -> processing.
func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = 'processing',
    started_at = $1,
    updated_at = now()
WHERE id = $2 AND status = 'pending'`
	return r.execGuarded(ctx, query, startedAt, analysisID)
}

// MarkCompleted moves processing -> completed and stores the result.
func (r *PGRepo) MarkCompleted(ctx context.Context, analysisID string, result map[string]any, processingTime int, completedAt time.Time) error {
	payload, err := marshalJSONB(result)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET status = 'completed',
    result_data = $1::jsonb,
    processing_time = $2,
    completed_at = $3,
    error_message = '',
    updated_at = now()
WHERE id = $4 AND status = 'processing'`
	return r.execGuarded(ctx, query, payload, processingTime, completedAt, analysisID)
}

// MarkFailed moves pending or processing -> failed.
func (r *PGRepo) MarkFailed(ctx context.Context, analysisID, errorMessage string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = 'failed',
    error_message = $1,
    completed_at = $2,
    updated_at = now()
WHERE id = $3 AND status IN ('pending', 'processing')`
	return r.execGuarded(ctx, query, errorMessage, completedAt, analysisID)
}

// UpdateFeedback stores user feedback on an analysis.
func (r *PGRepo) UpdateFeedback(ctx context.Context, analysisID, userID string, feedback map[string]any) error {
	payload, err := marshalJSONB(feedback)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET feedback = $1::jsonb,
    updated_at = now()
WHERE id = $2 AND user_id = $3`
	res, err := r.DB.ExecContext(ctx, query, payload, analysisID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// execGuarded runs a status-guarded update. A zero row count means either
// the row is missing (ErrNotFound) or it is not in the expected source
// status (ErrTransitionRejected).
func (r *PGRepo) execGuarded(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	analysisID := args[len(args)-1]
	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM analyses WHERE id = $1`, analysisID).Scan(&status)
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

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var paramsRaw, resultRaw, feedbackRaw []byte
	var errorMessage sql.NullString
	var processingTime sql.NullInt64
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.PaperID,
		&a.UserID,
		&a.AnalysisType,
		&paramsRaw,
		&a.Status,
		&resultRaw,
		&errorMessage,
		&processingTime,
		&feedbackRaw,
		&a.Version,
		&a.CreatedAt,
		&startedAt,
		&completedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if len(paramsRaw) > 0 {
		_ = json.Unmarshal(paramsRaw, &a.Parameters)
	}
	if len(resultRaw) > 0 {
		_ = json.Unmarshal(resultRaw, &a.Result)
	}
	if len(feedbackRaw) > 0 {
		_ = json.Unmarshal(feedbackRaw, &a.Feedback)
	}
	if errorMessage.Valid {
		a.ErrorMessage = errorMessage.String
	}
	if processingTime.Valid {
		v := int(processingTime.Int64)
		a.ProcessingTime = &v
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

func marshalJSONB(value any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}
