package papers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	localstore "paperal-backend/internal/shared/storage/object/local"
)

const samplePaperText = `Neural Architecture Search for Edge Devices

Authors: Alice Chen, Bob Liu
doi: 10.1234/nas.2023.001
Journal: Journal of Machine Learning Systems
Vol. 12, pp. 101-118

We study hardware-aware architecture search under tight latency budgets.`

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		Store: localstore.New(t.TempDir()),
		Repo:  NewMemoryRepo(),
	}
}

func TestUploadExtractsMetadata(t *testing.T) {
	svc := newTestService(t)

	paper, err := svc.Upload(context.Background(), "guest:u1", "nas-paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if paper.Title != "Neural Architecture Search for Edge Devices" {
		t.Errorf("title = %q", paper.Title)
	}
	if len(paper.Authors) != 2 || paper.Authors[0] != "Alice Chen" || paper.Authors[1] != "Bob Liu" {
		t.Errorf("authors = %v", paper.Authors)
	}
	if paper.DOI != "10.1234/nas.2023.001" {
		t.Errorf("doi = %q", paper.DOI)
	}
	if paper.Venue != "Journal of Machine Learning Systems" {
		t.Errorf("venue = %q", paper.Venue)
	}
	if paper.Volume != "12" {
		t.Errorf("volume = %q", paper.Volume)
	}
	if paper.Pages != "101-118" {
		t.Errorf("pages = %q", paper.Pages)
	}
	if paper.FileKey == "" || paper.ContentHash == "" {
		t.Errorf("expected file key and content hash, got %q / %q", paper.FileKey, paper.ContentHash)
	}

	// The derived extracted-text copy must exist for later analysis jobs.
	body, err := svc.Store.Open(context.Background(), paper.ExtractedTextKey())
	if err != nil {
		t.Fatalf("open extracted text: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read extracted text: %v", err)
	}
	if string(data) != samplePaperText {
		t.Errorf("extracted text mismatch")
	}
}

func TestUploadDuplicateReturnsExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "guest:u1", "paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}

	second, err := svc.Upload(ctx, "guest:u1", "paper-copy.txt", strings.NewReader(samplePaperText))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected existing paper %s, got %s", first.ID, second.ID)
	}
}

func TestUploadSameContentDifferentUsers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "guest:u1", "paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := svc.Upload(ctx, "guest:u2", "paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if first.ID == second.ID {
		t.Errorf("dedupe must be scoped per user")
	}
}

func TestUploadExtractionFailureStillCreatesPaper(t *testing.T) {
	svc := newTestService(t)

	// Binary payload that no extractor understands.
	payload := string([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	paper, err := svc.Upload(context.Background(), "guest:u1", "scan-archive.bin", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if paper.Title != "scan-archive" {
		t.Errorf("expected filename-derived title, got %q", paper.Title)
	}
	if paper.DOI != "" || len(paper.Authors) != 0 {
		t.Errorf("expected no extracted metadata, got doi=%q authors=%v", paper.DOI, paper.Authors)
	}
}

func TestListSearchesByTitle(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Upload(context.Background(), "guest:u1", "nas-paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("upload first: %v", err)
	}
	if _, err := svc.Upload(context.Background(), "guest:u1", "other.txt",
		strings.NewReader("Quantum Error Correction Codes in Practice\n\nAuthors: Hana Sato\n\nWe survey stabilizer codes.")); err != nil {
		t.Fatalf("upload second: %v", err)
	}

	all, err := svc.List(context.Background(), "guest:u1", "", 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(all))
	}

	found, err := svc.List(context.Background(), "guest:u1", "edge devices", 20, 0)
	if err != nil {
		t.Fatalf("list search: %v", err)
	}
	if len(found) != 1 || found[0].ID != first.ID {
		t.Fatalf("search result = %+v", found)
	}

	none, err := svc.List(context.Background(), "guest:u1", "unrelated term", 20, 0)
	if err != nil {
		t.Fatalf("list no match: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestUpdateFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	paper, err := svc.Upload(ctx, "guest:u1", "paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	title := "Corrected Title"
	year := 2021
	updated, err := svc.Update(ctx, "guest:u1", paper.ID, Update{Title: &title, PublicationYear: &year})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Corrected Title" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.PublicationYear == nil || *updated.PublicationYear != 2021 {
		t.Errorf("publication year = %v", updated.PublicationYear)
	}
	// Untouched fields survive the update.
	if updated.DOI != paper.DOI {
		t.Errorf("doi changed: %q -> %q", paper.DOI, updated.DOI)
	}
}

func TestDeleteRemovesPaper(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	paper, err := svc.Upload(ctx, "guest:u1", "paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := svc.Delete(ctx, "guest:u1", paper.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "guest:u1", paper.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRejectsOtherUsers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	paper, err := svc.Upload(ctx, "guest:u1", "paper.txt", strings.NewReader(samplePaperText))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.Get(ctx, "guest:u2", paper.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}
