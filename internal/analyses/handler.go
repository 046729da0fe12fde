package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"paperal-backend/internal/shared/server/middleware"
	"paperal-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/papers/:id/analyses", h.requestAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/results", h.getResults)
	rg.POST("/analyses/:id/feedback", h.addFeedback)
}

type requestAnalysisBody struct {
	AnalysisType string         `json:"analysisType"`
	Parameters   map[string]any `json:"parameters"`
}

func (h *Handler) requestAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	paperID := c.Param("id")
	if paperID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "paper id is required", nil)
		return
	}

	var req requestAnalysisBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.Request(ctx, paperID, userID, req.AnalysisType, req.Parameters)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "paper not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to request analysis", nil)
		}
		return
	}

	c.Set("paperId", paperID)
	c.Set("analysisId", analysis.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.OK(c, toResponse(analysis))
}

func (h *Handler) getResults(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	analysis, err := h.Svc.GetResults(c.Request.Context(), analysisID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusBadRequest, "not_ready", "analysis is not completed", gin.H{"status": analysis.Status})
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis results", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.OK(c, toResponse(analysis))
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	status := c.Query("status")
	switch status {
	case "", StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid status filter", nil)
		return
	}

	list, err := h.Svc.List(c.Request.Context(), userID, status, c.Query("paperId"), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]AnalysisResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, toResponse(a))
	}
	respond.OK(c, resp)
}

func (h *Handler) addFeedback(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	var feedback map[string]any
	if err := c.ShouldBindJSON(&feedback); err != nil || len(feedback) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "feedback body is required", nil)
		return
	}

	if err := h.Svc.AttachFeedback(c.Request.Context(), analysisID, userID, feedback); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store feedback", nil)
		}
		return
	}

	c.Set("analysisId", analysisID)
	respond.OK(c, gin.H{"analysisId": analysisID, "feedback": "recorded"})
}
