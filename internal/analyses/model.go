package analyses

import "time"

// Status values for an analysis. Transitions are strictly
// pending -> processing -> completed | failed, with failed also reachable
// directly from pending when a job cannot start.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis types. An unrecognized type is coerced to standard rather than
// rejected.
const (
	TypeStandard  = "standard"
	TypeTechnical = "technical"
	TypeMarket    = "market"
	TypeBusiness  = "business"
	TypeCustom    = "custom"
)

// Analysis represents an LLM analysis job over a paper.
type Analysis struct {
	ID             string
	PaperID        string
	UserID         string
	AnalysisType   string
	Parameters     map[string]any
	Status         string
	Result         map[string]any
	ErrorMessage   string
	ProcessingTime *int // whole seconds
	Feedback       map[string]any
	Version        string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the analysis reached a final state.
func (a Analysis) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
