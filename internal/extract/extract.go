package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperal-backend/internal/shared/storage/object"
)

const (
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
)

// Extraction is the text view of an uploaded paper plus the side channels the
// metadata heuristics consume.
type Extraction struct {
	Text      string
	Info      map[string]string
	PageCount int
}

// ExtractDocument pulls text from a stored object and persists a derived
// .extracted.txt copy next to it. Library used: github.com/ledongthuc/pdf.
func ExtractDocument(ctx context.Context, store object.ObjectStore, fileKey string, mimeType string, fileName string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	extraction, err := ExtractFromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	extractedKey := fileKey + ".extracted.txt"
	if err := saveExtracted(ctx, store, extractedKey, extraction.Text); err != nil {
		return Extraction{}, fmt.Errorf("extract key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	return extraction, nil
}

// ExtractFromBytes extracts text and embedded metadata from an in-memory payload.
func ExtractFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	switch normalizeMimeType(mimeType, fileName) {
	case mimePDF:
		return extractPDF(data)
	case mimeText:
		return Extraction{Text: string(data), Info: map[string]string{}}, nil
	default:
		return Extraction{}, fmt.Errorf("unsupported mime type: %s", mimeType)
	}
}

func saveExtracted(ctx context.Context, store object.ObjectStore, key string, text string) error {
	saver, ok := store.(object.KeySaver)
	if !ok {
		return errors.New("object store does not support SaveWithKey")
	}
	reader := strings.NewReader(text)
	_, err := saver.SaveWithKey(ctx, key, "text/plain; charset=utf-8", reader)
	return err
}

func extractPDF(data []byte) (extraction Extraction, err error) {
	// The pdf library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return Extraction{}, err
	}

	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return Extraction{}, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Extraction{}, err
	}

	return Extraction{
		Text:      buf.String(),
		Info:      readInfoDict(pdfReader),
		PageCount: pdfReader.NumPage(),
	}, nil
}

// readInfoDict flattens the PDF trailer Info dictionary to plain strings.
// Missing or malformed entries are skipped rather than failing extraction.
func readInfoDict(r *pdf.Reader) map[string]string {
	info := map[string]string{}

	defer func() {
		_ = recover()
	}()

	dict := r.Trailer().Key("Info")
	if dict.Kind() != pdf.Dict {
		return info
	}
	for _, key := range dict.Keys() {
		val := dict.Key(key)
		var text string
		switch val.Kind() {
		case pdf.String:
			text = val.Text()
		case pdf.Name:
			text = val.Name()
		default:
			text = val.String()
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			info[key] = trimmed
		}
	}
	return info
}

func normalizeMimeType(mimeType string, fileName string) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case mimePDF, mimeText:
		return clean
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".txt":
		return mimeText
	default:
		return clean
	}
}
