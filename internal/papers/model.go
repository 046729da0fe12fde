package papers

import "time"

// Paper represents an uploaded research paper owned by a user.
type Paper struct {
	ID              string
	UserID          string
	Title           string
	Authors         []string
	Abstract        string
	DOI             string
	Venue           string
	PublicationYear *int
	Volume          string
	Pages           string
	Tags            []string
	FileKey         string
	FileName        string
	FileSize        int64
	MimeType        string
	ContentHash     string
	PageCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExtractedTextKey returns the storage key of the derived plain-text copy.
// The key is deterministic so downstream consumers never need a lookup.
func (p Paper) ExtractedTextKey() string {
	if p.FileKey == "" {
		return ""
	}
	return p.FileKey + ".extracted.txt"
}
