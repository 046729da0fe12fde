package reports

import "time"

// ReportResponse is the outward-facing representation of a report.
// ErrorMessage is only populated on failed reports.
type ReportResponse struct {
	ReportID     string         `json:"reportId"`
	AnalysisID   string         `json:"analysisId"`
	Title        string         `json:"title"`
	Format       string         `json:"format"`
	TemplateID   string         `json:"templateId,omitempty"`
	Status       string         `json:"status"`
	Sections     map[string]any `json:"sections,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	IsPublic     bool           `json:"isPublic"`
	AccessCount  int            `json:"accessCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func toResponse(r Report) ReportResponse {
	resp := ReportResponse{
		ReportID:    r.ID,
		AnalysisID:  r.AnalysisID,
		Title:       r.Title,
		Format:      r.Format,
		TemplateID:  r.TemplateID,
		Status:      r.Status,
		Sections:    r.Sections,
		IsPublic:    r.IsPublic,
		AccessCount: r.AccessCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Status == StatusFailed {
		resp.ErrorMessage = r.ErrorMessage
	}
	return resp
}

// ShareResponse is the outward-facing representation of a share.
type ShareResponse struct {
	ShareID    string     `json:"shareId"`
	ReportID   string     `json:"reportId"`
	ShareCode  string     `json:"shareCode"`
	ShareURL   string     `json:"shareUrl"`
	AccessType string     `json:"accessType"`
	Recipients []string   `json:"recipients,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toShareResponse(s Share) ShareResponse {
	return ShareResponse{
		ShareID:    s.ID,
		ReportID:   s.ReportID,
		ShareCode:  s.ShareCode,
		ShareURL:   s.URL,
		AccessType: s.AccessType,
		Recipients: s.Recipients,
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
	}
}

// CommentResponse is the outward-facing representation of a comment.
type CommentResponse struct {
	CommentID string    `json:"commentId"`
	ReportID  string    `json:"reportId"`
	ParentID  *string   `json:"parentId,omitempty"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}

func toCommentResponse(c Comment) CommentResponse {
	return CommentResponse{
		CommentID: c.ID,
		ReportID:  c.ReportID,
		ParentID:  c.ParentID,
		UserID:    c.UserID,
		Content:   c.Content,
		Resolved:  c.Resolved,
		CreatedAt: c.CreatedAt,
	}
}
