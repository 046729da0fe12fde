package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperal-backend/internal/analyses"
	"paperal-backend/internal/papers"
	"paperal-backend/internal/queue"
	"paperal-backend/internal/shared/metrics"
	"paperal-backend/internal/shared/storage/object"
	"paperal-backend/internal/shared/telemetry"
)

// Service contains business logic for reports, shares and comments.
type Service struct {
	Repo     Repo
	Analyses analyses.Repo
	Papers   papers.PapersRepo
	Store    object.ObjectStore
	Queue    queue.Client

	// ShareBaseURL is the public prefix for share links, without a
	// trailing slash, e.g. "https://paperal.com/s".
	ShareBaseURL string
}

// RequestInput carries the caller's options for a new report.
type RequestInput struct {
	Title      string
	Format     string
	TemplateID string
	Sections   map[string]any
}

// Request creates a generating report for a completed analysis and
// dispatches the render job. An analysis that is still pending or
// processing, or that has failed, rejects the request with ErrNotReady.
func (s *Service) Request(ctx context.Context, analysisID, userID string, in RequestInput) (Report, error) {
	if analysisID == "" || userID == "" {
		return Report{}, ErrInvalidInput
	}

	format := in.Format
	if format == "" {
		format = FormatPDF
	}
	switch format {
	case FormatPDF, FormatDocx, FormatHTML:
	default:
		return Report{}, ErrInvalidInput
	}

	analysis, err := s.Analyses.GetByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, analyses.ErrNotFound) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	if analysis.UserID != userID {
		return Report{}, ErrNotFound
	}
	if analysis.Status != analyses.StatusCompleted {
		return Report{}, ErrNotReady
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Commercialization Report"
	}

	now := time.Now().UTC()
	report := Report{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		UserID:     userID,
		Title:      title,
		Format:     format,
		TemplateID: strings.TrimSpace(in.TemplateID),
		Status:     StatusGenerating,
		Sections:   in.Sections,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Repo.Create(ctx, report); err != nil {
		return Report{}, err
	}

	s.dispatch(ctx, report.ID)

	return report, nil
}

func (s *Service) dispatch(ctx context.Context, reportID string) {
	if s.Queue != nil {
		msg := queue.Message{
			Kind:       queue.KindReport,
			ReportID:   reportID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err == nil {
			return
		} else {
			telemetry.Error("report.enqueue_failed", map[string]any{
				"report_id": reportID,
				"error":     err.Error(),
			})
		}
	}
	go s.renderAsync(backgroundWithRequestID(ctx), reportID)
}

func (s *Service) renderAsync(ctx context.Context, reportID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failReport(ctx, reportID, fmt.Errorf("panic: %v", r))
		}
	}()
	_ = s.Render(ctx, reportID)
}

// Render produces the report artifact and moves the report to a terminal
// state. It is the entry point for both the queue worker and the inline
// fallback. Redelivery of a job whose report is no longer generating is
// logged and ignored.
func (s *Service) Render(ctx context.Context, reportID string) error {
	report, err := s.Repo.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	if report.IsTerminal() {
		telemetry.Info("report.redelivery_ignored", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"report_id":  reportID,
			"status":     report.Status,
		})
		return nil
	}

	metrics.IncReportStarted()

	analysis, err := s.Analyses.GetByID(ctx, report.AnalysisID)
	if err != nil {
		s.failReport(ctx, reportID, fmt.Errorf("analysis lookup id=%s: %w", report.AnalysisID, err))
		return err
	}
	if len(analysis.Result) == 0 {
		s.failReport(ctx, reportID, ErrMissingResult)
		return ErrMissingResult
	}

	paper, err := s.Papers.GetByID(ctx, analysis.UserID, analysis.PaperID)
	if err != nil {
		s.failReport(ctx, reportID, fmt.Errorf("paper lookup id=%s: %w", analysis.PaperID, err))
		return err
	}

	saver, ok := s.Store.(object.KeySaver)
	if !ok {
		err := errors.New("object store does not support keyed writes")
		s.failReport(ctx, reportID, err)
		return err
	}

	content := renderMarkdown(report, paper, analysis)
	fileKey := artifactKey(report)
	if _, err := saver.SaveWithKey(ctx, fileKey, contentType(report.Format), strings.NewReader(content)); err != nil {
		s.failReport(ctx, reportID, fmt.Errorf("save artifact %s: %w", fileKey, err))
		return err
	}

	completedAt := time.Now().UTC()
	if err := s.Repo.MarkCompleted(ctx, reportID, fileKey, completedAt); err != nil {
		if errors.Is(err, ErrTransitionRejected) {
			telemetry.Info("report.redelivery_ignored", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"report_id":  reportID,
			})
			return nil
		}
		return err
	}

	metrics.IncReportCompleted()
	telemetry.Info("report.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           report.UserID,
		"analysis_id":       report.AnalysisID,
		"report_id":         reportID,
		"status":            StatusCompleted,
		"status_transition": "generating->completed",
		"file_key":          fileKey,
	})
	return nil
}

// Get returns a report owned by the user.
func (s *Service) Get(ctx context.Context, reportID, userID string) (Report, error) {
	if reportID == "" || userID == "" {
		return Report{}, ErrInvalidInput
	}
	report, err := s.Repo.GetByID(ctx, reportID)
	if err != nil {
		return Report{}, err
	}
	if report.UserID != userID {
		return Report{}, ErrNotFound
	}
	return report, nil
}

// List returns reports for a user ordered newest-first, optionally filtered
// by owning analysis.
func (s *Service) List(ctx context.Context, userID, analysisID string, limit, offset int) ([]Report, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, analysisID, limit, offset)
}

// Update applies a partial update to a report owned by the user.
func (s *Service) Update(ctx context.Context, reportID, userID string, update Update) (Report, error) {
	if reportID == "" || userID == "" {
		return Report{}, ErrInvalidInput
	}
	if update.Title == nil && update.IsPublic == nil && update.Sections == nil {
		return Report{}, ErrInvalidInput
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return Report{}, ErrInvalidInput
	}
	return s.Repo.UpdateFields(ctx, reportID, userID, update)
}

// ShareInput carries the caller's options for a new share.
type ShareInput struct {
	AccessType string
	ExpiresAt  *time.Time
	Recipients []string
}

// Share appends a share record to a report owned by the user and returns
// it with the resolved URL. Expiry is stored as given, it is not validated
// against the current time.
func (s *Service) Share(ctx context.Context, reportID, userID string, in ShareInput) (Share, error) {
	report, err := s.Get(ctx, reportID, userID)
	if err != nil {
		return Share{}, err
	}

	accessType := in.AccessType
	if accessType == "" {
		accessType = AccessLink
	}
	switch accessType {
	case AccessLink, AccessEmail:
	default:
		return Share{}, ErrInvalidInput
	}

	shareID := uuid.NewString()
	share := Share{
		ID:         shareID,
		ReportID:   report.ID,
		ShareCode:  shareID[:8],
		SharedBy:   userID,
		AccessType: accessType,
		Recipients: in.Recipients,
		ExpiresAt:  in.ExpiresAt,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.Repo.AddShare(ctx, share); err != nil {
		return Share{}, err
	}

	metrics.IncShareCreated()
	telemetry.Info("report.shared", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     userID,
		"report_id":   report.ID,
		"share_code":  share.ShareCode,
		"access_type": accessType,
	})

	share.URL = s.shareURL(share.ShareCode)
	return share, nil
}

// ListShares returns all shares of a report owned by the user, with URLs
// resolved.
func (s *Service) ListShares(ctx context.Context, reportID, userID string) ([]Share, error) {
	if _, err := s.Get(ctx, reportID, userID); err != nil {
		return nil, err
	}
	shares, err := s.Repo.ListShares(ctx, reportID)
	if err != nil {
		return nil, err
	}
	for i := range shares {
		shares[i].URL = s.shareURL(shares[i].ShareCode)
	}
	return shares, nil
}

// ResolveShareCode looks up a share by its code and returns the shared
// report, bumping its access counter. Expired shares behave as missing.
func (s *Service) ResolveShareCode(ctx context.Context, code string) (Report, Share, error) {
	if code == "" {
		return Report{}, Share{}, ErrInvalidInput
	}
	share, err := s.Repo.GetShareByCode(ctx, code)
	if err != nil {
		return Report{}, Share{}, err
	}
	if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now().UTC()) {
		return Report{}, Share{}, ErrNotFound
	}
	report, err := s.Repo.GetByID(ctx, share.ReportID)
	if err != nil {
		return Report{}, Share{}, err
	}
	if err := s.Repo.IncrementAccess(ctx, report.ID); err == nil {
		report.AccessCount++
	}
	share.URL = s.shareURL(share.ShareCode)
	return report, share, nil
}

// AddComment appends a comment to a report owned by the user. A non-empty
// parentID threads the comment as a reply and must name an existing
// comment on the same report.
func (s *Service) AddComment(ctx context.Context, reportID, userID, content, parentID string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, ErrInvalidInput
	}
	report, err := s.Get(ctx, reportID, userID)
	if err != nil {
		return Comment{}, err
	}

	var parent *string
	if parentID != "" {
		existing, err := s.Repo.ListComments(ctx, report.ID)
		if err != nil {
			return Comment{}, err
		}
		found := false
		for _, c := range existing {
			if c.ID == parentID {
				found = true
				break
			}
		}
		if !found {
			return Comment{}, ErrInvalidInput
		}
		parent = &parentID
	}

	now := time.Now().UTC()
	comment := Comment{
		ID:        uuid.NewString(),
		ReportID:  report.ID,
		ParentID:  parent,
		UserID:    userID,
		Content:   content,
		Resolved:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.AddComment(ctx, comment); err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// ListComments returns all comments of a report owned by the user.
func (s *Service) ListComments(ctx context.Context, reportID, userID string) ([]Comment, error) {
	if _, err := s.Get(ctx, reportID, userID); err != nil {
		return nil, err
	}
	return s.Repo.ListComments(ctx, reportID)
}

// Download opens the rendered artifact of a completed report.
func (s *Service) Download(ctx context.Context, reportID, userID string) (Report, io.ReadCloser, error) {
	report, err := s.Get(ctx, reportID, userID)
	if err != nil {
		return Report{}, nil, err
	}
	if report.Status != StatusCompleted || report.FileKey == "" {
		return report, nil, ErrNotReady
	}
	body, err := s.Store.Open(ctx, report.FileKey)
	if err != nil {
		return Report{}, nil, err
	}
	return report, body, nil
}

func (s *Service) shareURL(code string) string {
	base := strings.TrimSuffix(s.ShareBaseURL, "/")
	return base + "/" + code
}

func (s *Service) failReport(ctx context.Context, reportID string, cause error) {
	msg := sanitizeError(cause)
	failedAt := time.Now().UTC()
	if updateErr := s.Repo.MarkFailed(context.Background(), reportID, msg, failedAt); updateErr != nil {
		telemetry.Error("report.fail_update", map[string]any{
			"report_id": reportID,
			"error":     updateErr.Error(),
			"cause":     msg,
		})
		if errors.Is(updateErr, ErrTransitionRejected) {
			return
		}
	}
	metrics.IncReportFailed()
	telemetry.Info("report.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"report_id":         reportID,
		"status":            StatusFailed,
		"status_transition": "generating->failed",
		"error":             msg,
	})
}

func artifactKey(report Report) string {
	return "reports/" + report.ID + "." + report.Format
}

func contentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatHTML:
		return "text/html"
	default:
		return "application/octet-stream"
	}
}

// renderMarkdown assembles the artifact body. All formats currently share
// the markdown rendering, the format only selects the artifact key and
// content type.
func renderMarkdown(report Report, paper papers.Paper, analysis analyses.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Title)

	b.WriteString("## Paper\n\n")
	fmt.Fprintf(&b, "Title: %s\n", paper.Title)
	authors := "unknown"
	if len(paper.Authors) > 0 {
		authors = strings.Join(paper.Authors, ", ")
	}
	fmt.Fprintf(&b, "Authors: %s\n\n", authors)

	b.WriteString("## Analysis\n\n")
	if raw, ok := analysis.Result["raw_analysis"].(string); ok && raw != "" {
		b.WriteString(strings.TrimSpace(raw))
		b.WriteString("\n")
	} else {
		for _, key := range sortedKeys(analysis.Result) {
			fmt.Fprintf(&b, "%s: %v\n", key, analysis.Result[key])
		}
	}

	if len(report.Sections) > 0 {
		for _, key := range sortedKeys(report.Sections) {
			fmt.Fprintf(&b, "\n## %s\n\n%v\n", key, report.Sections[key])
		}
	}

	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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
