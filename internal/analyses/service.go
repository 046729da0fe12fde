package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperal-backend/internal/extract"
	"paperal-backend/internal/llm"
	"paperal-backend/internal/papers"
	"paperal-backend/internal/queue"
	"paperal-backend/internal/shared/metrics"
	"paperal-backend/internal/shared/storage/object"
	"paperal-backend/internal/shared/telemetry"
)

// Service contains business logic for analyses.
type Service struct {
	Repo    Repo
	Papers  papers.PapersRepo
	Store   object.ObjectStore
	LLM     llm.Client
	Queue   queue.Client
	Model   string
	Version string
}

// Request creates a pending analysis for a paper and dispatches the job.
// With a queue configured the job is handed to the worker; otherwise it is
// processed inline in a background goroutine.
func (s *Service) Request(ctx context.Context, paperID, userID, analysisType string, parameters map[string]any) (Analysis, error) {
	if paperID == "" || userID == "" {
		return Analysis{}, ErrInvalidInput
	}
	switch analysisType {
	case TypeStandard, TypeTechnical, TypeMarket, TypeBusiness, TypeCustom:
	default:
		analysisType = TypeStandard
	}

	if _, err := s.Papers.GetByID(ctx, userID, paperID); err != nil {
		if errors.Is(err, papers.ErrNotFound) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:           uuid.NewString(),
		PaperID:      paperID,
		UserID:       userID,
		AnalysisType: analysisType,
		Parameters:   parameters,
		Status:       StatusPending,
		Version:      s.Version,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	s.dispatch(ctx, analysis.ID)

	return analysis, nil
}

func (s *Service) dispatch(ctx context.Context, analysisID string) {
	if s.Queue != nil {
		msg := queue.Message{
			Kind:       queue.KindAnalysis,
			AnalysisID: analysisID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err == nil {
			return
		} else {
			telemetry.Error("analysis.enqueue_failed", map[string]any{
				"analysis_id": analysisID,
				"error":       err.Error(),
			})
		}
	}
	go s.processAsync(backgroundWithRequestID(ctx), analysisID)
}

func (s *Service) processAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, "", "", fmt.Errorf("panic: %v", r), nil)
		}
	}()
	_ = s.Process(ctx, analysisID)
}

// Process runs an analysis job end to end. It is the entry point for both
// the queue worker and the inline fallback. Redelivery of a job whose
// analysis is no longer pending is logged and ignored, which keeps
// at-least-once queue delivery safe.
func (s *Service) Process(ctx context.Context, analysisID string) error {
	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, analysisID, startedAt); err != nil {
		if errors.Is(err, ErrTransitionRejected) {
			telemetry.Info("analysis.redelivery_ignored", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
			})
			return nil
		}
		return err
	}

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, "", "", fmt.Errorf("analysis lookup: %w", err), &startedAt)
		return err
	}

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"paper_id":          analysis.PaperID,
		"analysis_id":       analysis.ID,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	if s.Papers == nil || s.Store == nil {
		err := errors.New("missing paper store dependencies")
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.PaperID, err, &startedAt)
		return err
	}
	if s.LLM == nil {
		err := errors.New("missing llm client")
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.PaperID, err, &startedAt)
		return err
	}

	paper, err := s.Papers.GetByID(ctx, analysis.UserID, analysis.PaperID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.PaperID, fmt.Errorf("paper lookup id=%s: %w", analysis.PaperID, err), &startedAt)
		return err
	}

	text, err := s.loadPaperText(ctx, paper)
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.PaperID, fmt.Errorf("paper %s text: %w", paper.ID, err), &startedAt)
		return err
	}

	rawAnalysis, err := s.LLM.Analyze(ctx, llm.AnalyzeInput{
		Title:        paper.Title,
		Authors:      paper.Authors,
		Excerpt:      llm.TruncateExcerpt(text),
		AnalysisType: analysis.AnalysisType,
		Parameters:   analysis.Parameters,
	})
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.PaperID, fmt.Errorf("llm analyze: %w", err), &startedAt)
		return err
	}

	completedAt := time.Now().UTC()
	processingTime := int(completedAt.Sub(startedAt).Seconds())
	result := map[string]any{
		"raw_analysis":  rawAnalysis,
		"analysis_type": analysis.AnalysisType,
		"model":         s.Model,
		"version":       analysis.Version,
	}

	if err := s.Repo.MarkCompleted(ctx, analysisID, result, processingTime, completedAt); err != nil {
		if errors.Is(err, ErrTransitionRejected) {
			telemetry.Info("analysis.redelivery_ignored", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
			})
			return nil
		}
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.PaperID, fmt.Errorf("set analysis result failed: %w", err), &startedAt)
		return err
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"paper_id":          analysis.PaperID,
		"analysis_id":       analysis.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// Get returns an analysis owned by the user.
func (s *Service) Get(ctx context.Context, analysisID, userID string) (Analysis, error) {
	if analysisID == "" || userID == "" {
		return Analysis{}, ErrInvalidInput
	}
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// GetResults returns a completed analysis or ErrNotReady.
func (s *Service) GetResults(ctx context.Context, analysisID, userID string) (Analysis, error) {
	analysis, err := s.Get(ctx, analysisID, userID)
	if err != nil {
		return Analysis{}, err
	}
	if analysis.Status != StatusCompleted {
		return analysis, ErrNotReady
	}
	return analysis, nil
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID, status, paperID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, status, paperID, limit, offset)
}

// AttachFeedback stores user feedback on an analysis.
func (s *Service) AttachFeedback(ctx context.Context, analysisID, userID string, feedback map[string]any) error {
	if analysisID == "" || userID == "" || len(feedback) == 0 {
		return ErrInvalidInput
	}
	return s.Repo.UpdateFeedback(ctx, analysisID, userID, feedback)
}

func (s *Service) loadPaperText(ctx context.Context, paper papers.Paper) (string, error) {
	key := paper.ExtractedTextKey()
	if key == "" {
		return "", errors.New("paper has no stored file")
	}

	body, err := s.Store.Open(ctx, key)
	if err == nil {
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	// Derived copy is missing, extract again from the original.
	extraction, err := extract.ExtractDocument(ctx, s.Store, paper.FileKey, paper.MimeType, paper.FileName)
	if err != nil {
		return "", err
	}
	return extraction.Text, nil
}

func (s *Service) failAnalysis(ctx context.Context, analysisID, userID, paperID string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.MarkFailed(context.Background(), analysisID, msg, completedAt); updateErr != nil {
		telemetry.Error("analysis.fail_update", map[string]any{
			"analysis_id": analysisID,
			"error":       updateErr.Error(),
			"cause":       msg,
		})
		if errors.Is(updateErr, ErrTransitionRejected) {
			return
		}
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           userID,
		"paper_id":          paperID,
		"analysis_id":       analysisID,
		"status":            StatusFailed,
		"error":             msg,
		"duration_ms":       durationMs(startedAt, &completedAt),
		"status_transition": "processing->failed",
	})
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
