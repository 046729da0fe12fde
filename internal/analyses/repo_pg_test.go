package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	analysis := Analysis{
		ID:           "analysis-1",
		PaperID:      "paper-1",
		UserID:       "guest:u1",
		AnalysisType: "standard",
		Status:       StatusPending,
		Version:      "claude-3-sonnet:v1",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			analysis.ID,
			analysis.PaperID,
			analysis.UserID,
			analysis.AnalysisType,
			sqlmock.AnyArg(), // parameters
			analysis.Status,
			nil, // result_data
			"",
			nil, // processing_time
			nil, // feedback
			analysis.Version,
			sqlmock.AnyArg(),
			nil, // started_at
			nil, // completed_at
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkProcessingGuardsPendingStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	startedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analyses").
		WithArgs(startedAt, "analysis-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkProcessing(context.Background(), "analysis-1", startedAt); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkProcessingRejectsNonPendingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	startedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analyses").
		WithArgs(startedAt, "analysis-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analyses").
		WithArgs("analysis-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusCompleted))

	err := repo.MarkProcessing(context.Background(), "analysis-1", startedAt)
	if !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("expected ErrTransitionRejected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkProcessingMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	startedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analyses").
		WithArgs(startedAt, "analysis-9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analyses").
		WithArgs("analysis-9").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := repo.MarkProcessing(context.Background(), "analysis-9", startedAt)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkCompletedGuardsProcessingStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	completedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analyses").
		WithArgs(sqlmock.AnyArg(), 7, completedAt, "analysis-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analyses").
		WithArgs("analysis-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusFailed))

	err := repo.MarkCompleted(context.Background(), "analysis-1", map[string]any{"raw_analysis": "text"}, 7, completedAt)
	if !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("expected ErrTransitionRejected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkFailedFromPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	completedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analyses").
		WithArgs("enqueue exploded", completedAt, "analysis-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "analysis-1", "enqueue exploded", completedAt); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
