package papers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperal-backend/internal/extract"
	"paperal-backend/internal/papermeta"
	"paperal-backend/internal/shared/storage/object"
	"paperal-backend/internal/shared/telemetry"
	"paperal-backend/internal/shared/util"
)

// Service contains business logic for papers.
type Service struct {
	Store object.ObjectStore
	Repo  PapersRepo
}

// Upload saves the file to object storage, extracts bibliographic metadata
// and records the paper. Extraction failures are tolerated: the paper is
// still created with whatever metadata could be recovered.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Paper, error) {
	if userID == "" || fileName == "" {
		return Paper{}, ErrInvalidInput
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Paper{}, err
	}
	if len(data) == 0 {
		return Paper{}, ErrInvalidInput
	}

	contentHash := util.HashBytes(data)
	if existing, err := s.Repo.GetByContentHash(ctx, userID, contentHash); err == nil {
		return existing, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return Paper{}, err
	}

	fileKey, size, mimeType, err := s.Store.Save(ctx, userID, fileName, bytes.NewReader(data))
	if err != nil {
		return Paper{}, err
	}

	now := time.Now().UTC()
	paper := Paper{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       defaultTitle(fileName),
		Authors:     []string{},
		Tags:        []string{},
		FileKey:     fileKey,
		FileName:    fileName,
		FileSize:    size,
		MimeType:    mimeType,
		ContentHash: contentHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	extraction, err := extract.ExtractDocument(ctx, s.Store, fileKey, mimeType, fileName)
	if err != nil {
		telemetry.Warn("paper.extract_failed", map[string]any{
			"user_id":   userID,
			"paper_id":  paper.ID,
			"file_name": fileName,
			"error":     err.Error(),
		})
	} else {
		meta := papermeta.Extract(extraction.Text, extraction.Info)
		applyMetadata(&paper, meta)
		paper.PageCount = extraction.PageCount
	}

	if err := s.Repo.Create(ctx, paper); err != nil {
		return Paper{}, err
	}

	return paper, nil
}

// Get returns a paper by ID.
func (s *Service) Get(ctx context.Context, userID, paperID string) (Paper, error) {
	if userID == "" || paperID == "" {
		return Paper{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, paperID)
}

// List returns papers for a user ordered newest-first, optionally filtered
// by a title substring.
func (s *Service) List(ctx context.Context, userID, search string, limit, offset int) ([]Paper, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, strings.TrimSpace(search), limit, offset)
}

// Update applies a partial metadata update.
func (s *Service) Update(ctx context.Context, userID, paperID string, update Update) (Paper, error) {
	if userID == "" || paperID == "" {
		return Paper{}, ErrInvalidInput
	}
	return s.Repo.UpdateFields(ctx, userID, paperID, update)
}

// Delete removes a paper and its dependent analyses and reports.
func (s *Service) Delete(ctx context.Context, userID, paperID string) error {
	if userID == "" || paperID == "" {
		return ErrInvalidInput
	}
	return s.Repo.Delete(ctx, userID, paperID)
}

func applyMetadata(paper *Paper, meta papermeta.Metadata) {
	if meta.Title != "" {
		paper.Title = meta.Title
	}
	if len(meta.Authors) > 0 {
		paper.Authors = meta.Authors
	}
	paper.DOI = meta.DOI
	paper.Venue = meta.Venue
	paper.Volume = meta.Volume
	paper.Pages = meta.Pages
	if meta.Year != "" {
		if year, err := strconv.Atoi(meta.Year); err == nil {
			paper.PublicationYear = &year
		}
	}
}

func defaultTitle(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
