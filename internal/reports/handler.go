package reports

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"paperal-backend/internal/shared/server/middleware"
	"paperal-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the reports service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches authenticated report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses/:id/reports", h.requestReport)
	rg.GET("/reports", h.listReports)
	rg.GET("/reports/:id", h.getReport)
	rg.PATCH("/reports/:id", h.updateReport)
	rg.GET("/reports/:id/download", h.downloadReport)
	rg.POST("/reports/:id/share", h.shareReport)
	rg.GET("/reports/:id/shares", h.listShares)
	rg.POST("/reports/:id/comments", h.addComment)
	rg.GET("/reports/:id/comments", h.listComments)
}

// RegisterPublicRoutes attaches the unauthenticated shared-report route.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/s/:code", h.viewShared)
}

type requestReportBody struct {
	Title      string         `json:"title"`
	Format     string         `json:"format"`
	TemplateID string         `json:"templateId"`
	Sections   map[string]any `json:"sections"`
}

func (h *Handler) requestReport(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	var req requestReportBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	report, err := h.Svc.Request(ctx, analysisID, userID, RequestInput{
		Title:      req.Title,
		Format:     req.Format,
		TemplateID: req.TemplateID,
		Sections:   req.Sections,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusBadRequest, "not_ready", "analysis is not completed", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to request report", nil)
		}
		return
	}

	c.Set("analysisId", analysisID)
	c.Set("reportId", report.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"reportId": report.ID,
		"status":   report.Status,
	})
}

func (h *Handler) listReports(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	list, err := h.Svc.List(c.Request.Context(), userID, c.Query("analysisId"), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list reports", nil)
		return
	}

	resp := make([]ReportResponse, 0, len(list))
	for _, report := range list {
		resp = append(resp, toResponse(report))
	}
	respond.OK(c, resp)
}

func (h *Handler) getReport(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	report, err := h.Svc.Get(c.Request.Context(), reportID, userID)
	if err != nil {
		h.respondError(c, err, "report not found", "failed to fetch report")
		return
	}

	c.Set("reportId", report.ID)
	respond.OK(c, toResponse(report))
}

type updateReportBody struct {
	Title    *string         `json:"title"`
	IsPublic *bool           `json:"isPublic"`
	Sections *map[string]any `json:"sections"`
}

func (h *Handler) updateReport(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	var req updateReportBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	report, err := h.Svc.Update(c.Request.Context(), reportID, userID, Update{
		Title:    req.Title,
		IsPublic: req.IsPublic,
		Sections: req.Sections,
	})
	if err != nil {
		h.respondError(c, err, "report not found", "failed to update report")
		return
	}

	c.Set("reportId", report.ID)
	respond.OK(c, toResponse(report))
}

func (h *Handler) downloadReport(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	report, body, err := h.Svc.Download(c.Request.Context(), reportID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusBadRequest, "not_ready", "report is not completed", gin.H{"status": report.Status})
		default:
			h.respondError(c, err, "report not found", "failed to download report")
		}
		return
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read report artifact", nil)
		return
	}

	c.Set("reportId", report.ID)
	c.Header("Content-Disposition", `attachment; filename="`+report.ID+"."+report.Format+`"`)
	c.Data(http.StatusOK, contentType(report.Format), data)
}

type shareReportBody struct {
	AccessType string     `json:"accessType"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	Recipients []string   `json:"recipients"`
}

func (h *Handler) shareReport(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	var req shareReportBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	share, err := h.Svc.Share(ctx, reportID, userID, ShareInput{
		AccessType: req.AccessType,
		ExpiresAt:  req.ExpiresAt,
		Recipients: req.Recipients,
	})
	if err != nil {
		h.respondError(c, err, "report not found", "failed to share report")
		return
	}

	c.Set("reportId", reportID)
	respond.JSON(c, http.StatusCreated, toShareResponse(share))
}

func (h *Handler) listShares(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	shares, err := h.Svc.ListShares(c.Request.Context(), reportID, userID)
	if err != nil {
		h.respondError(c, err, "report not found", "failed to list shares")
		return
	}

	resp := make([]ShareResponse, 0, len(shares))
	for _, share := range shares {
		resp = append(resp, toShareResponse(share))
	}
	respond.OK(c, resp)
}

type addCommentBody struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

func (h *Handler) addComment(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	var req addCommentBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	comment, err := h.Svc.AddComment(c.Request.Context(), reportID, userID, req.Content, req.ParentID)
	if err != nil {
		h.respondError(c, err, "report not found", "failed to add comment")
		return
	}

	c.Set("reportId", reportID)
	respond.JSON(c, http.StatusCreated, toCommentResponse(comment))
}

func (h *Handler) listComments(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	reportID := c.Param("id")

	comments, err := h.Svc.ListComments(c.Request.Context(), reportID, userID)
	if err != nil {
		h.respondError(c, err, "report not found", "failed to list comments")
		return
	}

	resp := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, toCommentResponse(comment))
	}
	respond.OK(c, resp)
}

func (h *Handler) viewShared(c *gin.Context) {
	code := c.Param("code")

	report, share, err := h.Svc.ResolveShareCode(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err, "shared report not found", "failed to resolve share")
		return
	}

	c.Set("reportId", report.ID)
	respond.OK(c, gin.H{
		"report":     toResponse(report),
		"sharedBy":   share.SharedBy,
		"accessType": share.AccessType,
	})
}

func (h *Handler) respondError(c *gin.Context, err error, notFoundMsg, internalMsg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", notFoundMsg, nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrMissingResult):
		respond.Error(c, http.StatusConflict, "missing_result", "analysis has no stored result", nil)
	case errors.Is(err, ErrTransitionRejected):
		respond.Error(c, http.StatusConflict, "transition_rejected", "report is not in a state that allows this", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", internalMsg, nil)
	}
}
