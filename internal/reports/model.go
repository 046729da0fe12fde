package reports

import "time"

// Status values for a report. A report is created in generating and moves
// to exactly one of completed or failed when rendering finishes.
const (
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Supported output formats.
const (
	FormatPDF  = "pdf"
	FormatDocx = "docx"
	FormatHTML = "html"
)

// Share access types.
const (
	AccessLink  = "link"
	AccessEmail = "email"
)

// Report is a rendered artifact derived from a completed analysis.
type Report struct {
	ID           string
	AnalysisID   string
	UserID       string
	Title        string
	Format       string
	TemplateID   string
	Status       string
	Sections     map[string]any
	FileKey      string
	ErrorMessage string
	IsPublic     bool
	AccessCount  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the report reached a final state.
func (r Report) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Share grants access to a report through a short opaque code. Shares
// accumulate on a report and are never revoked or overwritten.
type Share struct {
	ID         string
	ReportID   string
	ShareCode  string
	SharedBy   string
	AccessType string
	Recipients []string
	ExpiresAt  *time.Time
	CreatedAt  time.Time

	// URL is derived from the share base URL and code. It is computed by
	// the service, not persisted.
	URL string
}

// Comment is user feedback attached to a report. Replies reference their
// parent comment through ParentID.
type Comment struct {
	ID        string
	ReportID  string
	ParentID  *string
	UserID    string
	Content   string
	Resolved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
