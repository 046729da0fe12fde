package papers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"paperal-backend/internal/shared/server/middleware"
	"paperal-backend/internal/shared/server/respond"
)

const maxUploadSize = 20 << 20 // 20MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches paper routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/papers", h.upload)
	rg.GET("/papers", h.list)
	rg.GET("/papers/:id", h.get)
	rg.PATCH("/papers/:id", h.update)
	rg.DELETE("/papers/:id", h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	paper, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			respond.Error(c, http.StatusConflict, "duplicate_paper", "paper already uploaded", gin.H{"paperId": paper.ID})
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload paper", nil)
		}
		return
	}

	// Caller-provided metadata wins over what extraction found.
	update := Update{}
	if title := strings.TrimSpace(c.PostForm("title")); title != "" {
		update.Title = &title
	}
	if raw := strings.TrimSpace(c.PostForm("authors")); raw != "" {
		authors := splitAuthors(raw)
		update.Authors = &authors
	}
	if update.Title != nil || update.Authors != nil {
		if updated, err := h.Svc.Update(c.Request.Context(), userID, paper.ID, update); err == nil {
			paper = updated
		}
	}

	c.Set("paperId", paper.ID)
	respond.JSON(c, http.StatusCreated, toResponse(paper))
}

func splitAuthors(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	paper, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "paper not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch paper", nil)
		}
		return
	}

	c.Set("paperId", paper.ID)
	respond.OK(c, toResponse(paper))
}

func (h *Handler) list(c *gin.Context) {
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
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.Svc.List(c.Request.Context(), userID, c.Query("search"), limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list papers", nil)
		}
		return
	}

	resp := make([]PaperResponse, 0, len(list))
	for _, paper := range list {
		resp = append(resp, toResponse(paper))
	}
	respond.OK(c, resp)
}

type updateRequest struct {
	Title           *string   `json:"title"`
	Authors         *[]string `json:"authors"`
	Abstract        *string   `json:"abstract"`
	DOI             *string   `json:"doi"`
	Venue           *string   `json:"venue"`
	PublicationYear *int      `json:"publicationYear"`
	Volume          *string   `json:"volume"`
	Pages           *string   `json:"pages"`
	Tags            *[]string `json:"tags"`
}

func (h *Handler) update(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	paper, err := h.Svc.Update(c.Request.Context(), userID, c.Param("id"), Update{
		Title:           req.Title,
		Authors:         req.Authors,
		Abstract:        req.Abstract,
		DOI:             req.DOI,
		Venue:           req.Venue,
		PublicationYear: req.PublicationYear,
		Volume:          req.Volume,
		Pages:           req.Pages,
		Tags:            req.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "paper not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update paper", nil)
		}
		return
	}

	c.Set("paperId", paper.ID)
	respond.OK(c, toResponse(paper))
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	if err := h.Svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "paper not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete paper", nil)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
