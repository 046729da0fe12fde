package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paperal-backend/internal/llm"
	"paperal-backend/internal/shared/config"
)

type fakeLLM struct{}

func (fakeLLM) Analyze(ctx context.Context, input llm.AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "Clear path to commercialization via managed inference services.", nil
}

func buildTestApp(t *testing.T) *App {
	t.Helper()
	app, err := Build(config.Config{
		Env:           "dev",
		LocalStoreDir: t.TempDir(),
		LLMProvider:   "none",
		ShareBaseURL:  "https://paperal.com/s",
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	app.AnalysesService.LLM = fakeLLM{}
	return app
}

func doJSON(t *testing.T, app *App, method, path, guestID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if guestID != "" {
		req.Header.Set("X-Guest-Id", guestID)
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func uploadPaper(t *testing.T, app *App, guestID, fileName, content string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Guest-Id", guestID)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body = %s", w.Code, w.Body.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return decoded
}

func waitForStatus(t *testing.T, app *App, guestID, path, want string) map[string]any {
	t.Helper()
	var last map[string]any
	for i := 0; i < 500; i++ {
		w, decoded := doJSON(t, app, http.MethodGet, path, guestID, nil)
		if w.Code == http.StatusOK {
			last = decoded
			if status, _ := decoded["status"].(string); status == want {
				return decoded
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q at %s, last = %v", want, path, last)
	return nil
}

const e2ePaperText = `Sparse Retrieval for Long-Context Agents

Authors: Dana Fox, Erik Yuen

We propose a retrieval index tuned for million-token agent contexts.`

func TestEndToEndPaperAnalysisReportFlow(t *testing.T) {
	app := buildTestApp(t)
	guest := "e2e-user"

	// Upload.
	paper := uploadPaper(t, app, guest, "sparse-retrieval.txt", e2ePaperText)
	paperID, _ := paper["paperId"].(string)
	if paperID == "" {
		t.Fatalf("missing paperId in %v", paper)
	}
	if paper["title"] != "Sparse Retrieval for Long-Context Agents" {
		t.Errorf("title = %v", paper["title"])
	}

	// Request analysis; queue is not configured so it runs inline.
	w, analysis := doJSON(t, app, http.MethodPost, "/api/v1/papers/"+paperID+"/analyses", guest, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("analysis status = %d body = %v", w.Code, analysis)
	}
	analysisID, _ := analysis["analysisId"].(string)
	if analysisID == "" {
		t.Fatalf("missing analysisId in %v", analysis)
	}

	waitForStatus(t, app, guest, "/api/v1/analyses/"+analysisID, "completed")

	// Results are exposed once complete.
	w, results := doJSON(t, app, http.MethodGet, "/api/v1/analyses/"+analysisID+"/results", guest, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("results status = %d body = %v", w.Code, results)
	}
	result, _ := results["result"].(map[string]any)
	if result == nil || result["raw_analysis"] == "" {
		t.Fatalf("missing result payload: %v", results)
	}

	// Generate a report from the completed analysis.
	w, report := doJSON(t, app, http.MethodPost, "/api/v1/analyses/"+analysisID+"/reports", guest, map[string]any{"title": "Agent Retrieval Review"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("report status = %d body = %v", w.Code, report)
	}
	reportID, _ := report["reportId"].(string)
	if reportID == "" {
		t.Fatalf("missing reportId in %v", report)
	}

	waitForStatus(t, app, guest, "/api/v1/reports/"+reportID, "completed")

	// Share it and view it anonymously.
	w, share := doJSON(t, app, http.MethodPost, "/api/v1/reports/"+reportID+"/share", guest, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("share status = %d body = %v", w.Code, share)
	}
	code, _ := share["shareCode"].(string)
	if len(code) != 8 {
		t.Fatalf("share code = %q", code)
	}
	if url, _ := share["shareUrl"].(string); !strings.HasSuffix(url, "/"+code) {
		t.Errorf("share url = %v", share["shareUrl"])
	}

	w, shared := doJSON(t, app, http.MethodGet, "/s/"+code, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("shared view status = %d body = %v", w.Code, shared)
	}

	// Comment on the report.
	w, comment := doJSON(t, app, http.MethodPost, "/api/v1/reports/"+reportID+"/comments", guest, map[string]any{"content": "nice work"})
	if w.Code != http.StatusCreated {
		t.Fatalf("comment status = %d body = %v", w.Code, comment)
	}
	if comment["resolved"] != false {
		t.Errorf("comment must start unresolved: %v", comment)
	}

	// Download the rendered artifact.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+reportID+"/download", nil)
	req.Header.Set("X-Guest-Id", guest)
	dw := httptest.NewRecorder()
	app.Router.ServeHTTP(dw, req)
	if dw.Code != http.StatusOK {
		t.Fatalf("download status = %d", dw.Code)
	}
	if !strings.Contains(dw.Body.String(), "# Agent Retrieval Review") {
		t.Errorf("artifact missing heading:\n%s", dw.Body.String())
	}
}

func TestReportFromIncompleteAnalysisRejected(t *testing.T) {
	app := buildTestApp(t)
	guest := "e2e-user"

	paper := uploadPaper(t, app, guest, "paper.txt", e2ePaperText)
	paperID, _ := paper["paperId"].(string)

	// Block the analysis from completing.
	app.AnalysesService.LLM = nil

	w, analysis := doJSON(t, app, http.MethodPost, "/api/v1/papers/"+paperID+"/analyses", guest, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("analysis status = %d", w.Code)
	}
	analysisID, _ := analysis["analysisId"].(string)

	waitForStatus(t, app, guest, "/api/v1/analyses/"+analysisID, "failed")

	w, body := doJSON(t, app, http.MethodPost, "/api/v1/analyses/"+analysisID+"/reports", guest, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for report on failed analysis, got %d body = %v", w.Code, body)
	}
}

func TestHealthAndMe(t *testing.T) {
	app := buildTestApp(t)

	w, _ := doJSON(t, app, http.MethodGet, "/api/v1/health", "someone", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	w, me := doJSON(t, app, http.MethodGet, "/api/v1/me", "someone", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	if me["userId"] != "guest:someone" {
		t.Errorf("userId = %v", me["userId"])
	}

	w, _ = doJSON(t, app, http.MethodGet, "/api/v1/papers", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
}
