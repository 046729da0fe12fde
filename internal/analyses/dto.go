package analyses

import "time"

// AnalysisResponse is the outward-facing representation of an analysis.
// Result is only populated on completed analyses.
type AnalysisResponse struct {
	AnalysisID     string         `json:"analysisId"`
	PaperID        string         `json:"paperId"`
	AnalysisType   string         `json:"analysisType"`
	Status         string         `json:"status"`
	Result         map[string]any `json:"result,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	ProcessingTime *int           `json:"processingTimeSeconds,omitempty"`
	Feedback       map[string]any `json:"feedback,omitempty"`
	Version        string         `json:"version,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

func toResponse(a Analysis) AnalysisResponse {
	resp := AnalysisResponse{
		AnalysisID:     a.ID,
		PaperID:        a.PaperID,
		AnalysisType:   a.AnalysisType,
		Status:         a.Status,
		ProcessingTime: a.ProcessingTime,
		Feedback:       a.Feedback,
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
	}
	if a.Status == StatusCompleted {
		resp.Result = a.Result
	}
	if a.Status == StatusFailed {
		resp.ErrorMessage = a.ErrorMessage
	}
	return resp
}
