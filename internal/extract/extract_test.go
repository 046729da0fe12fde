package extract

import (
	"context"
	"strings"
	"testing"
)

func TestExtractFromBytesPlainText(t *testing.T) {
	text := "A Study of Widgets\nAuthors: Alice Smith\n"

	got, err := ExtractFromBytes(context.Background(), []byte(text), "text/plain; charset=utf-8", "paper.txt")
	if err != nil {
		t.Fatalf("extract plain text: %v", err)
	}
	if got.Text != text {
		t.Fatalf("expected passthrough text, got %q", got.Text)
	}
	if got.Info == nil {
		t.Fatalf("expected non-nil info map")
	}
}

func TestExtractFromBytesFallsBackToExtension(t *testing.T) {
	got, err := ExtractFromBytes(context.Background(), []byte("hello"), "application/octet-stream", "notes.txt")
	if err != nil {
		t.Fatalf("expected extension fallback for .txt, got error: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("unexpected text %q", got.Text)
	}
}

func TestExtractFromBytesRejectsUnknownMime(t *testing.T) {
	_, err := ExtractFromBytes(context.Background(), []byte("x"), "image/png", "figure.png")
	if err == nil {
		t.Fatal("expected unsupported mime error")
	}
	if !strings.Contains(err.Error(), "unsupported mime type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractFromBytesMalformedPDF(t *testing.T) {
	_, err := ExtractFromBytes(context.Background(), []byte("%PDF-1.4 truncated"), "application/pdf", "paper.pdf")
	if err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}
