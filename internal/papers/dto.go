package papers

import "time"

// PaperResponse is the outward-facing representation of a paper.
type PaperResponse struct {
	PaperID         string    `json:"paperId"`
	Title           string    `json:"title"`
	Authors         []string  `json:"authors"`
	Abstract        string    `json:"abstract,omitempty"`
	DOI             string    `json:"doi,omitempty"`
	Venue           string    `json:"venue,omitempty"`
	PublicationYear *int      `json:"publicationYear,omitempty"`
	Volume          string    `json:"volume,omitempty"`
	Pages           string    `json:"pages,omitempty"`
	Tags            []string  `json:"tags"`
	FileName        string    `json:"fileName"`
	MimeType        string    `json:"mimeType"`
	SizeBytes       int64     `json:"sizeBytes"`
	PageCount       int       `json:"pageCount,omitempty"`
	UploadedAt      time.Time `json:"uploadedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toResponse(p Paper) PaperResponse {
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PaperResponse{
		PaperID:         p.ID,
		Title:           p.Title,
		Authors:         authors,
		Abstract:        p.Abstract,
		DOI:             p.DOI,
		Venue:           p.Venue,
		PublicationYear: p.PublicationYear,
		Volume:          p.Volume,
		Pages:           p.Pages,
		Tags:            tags,
		FileName:        p.FileName,
		MimeType:        p.MimeType,
		SizeBytes:       p.FileSize,
		PageCount:       p.PageCount,
		UploadedAt:      p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
