package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"paperal-backend/internal/llm"
)

type fakeRuntime struct {
	lastInput *bedrockruntime.InvokeModelInput
	body      []byte
	err       error
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestAnalyzeSendsAnthropicPayload(t *testing.T) {
	runtime := &fakeRuntime{
		body: []byte(`{"content":[{"type":"text","text":"  analysis text  "}]}`),
	}
	client := &Client{runtime: runtime, modelID: "anthropic.claude-3-sonnet-20240229-v1:0"}

	got, err := client.Analyze(context.Background(), llm.AnalyzeInput{
		Title:        "Quantum Error Correction at Scale",
		Authors:      []string{"Alice Smith"},
		Excerpt:      "We present a scalable approach.",
		AnalysisType: "standard",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "analysis text" {
		t.Fatalf("expected trimmed model text, got %q", got)
	}

	if runtime.lastInput == nil {
		t.Fatal("expected InvokeModel to be called")
	}
	var req claudeRequest
	if err := json.Unmarshal(runtime.lastInput.Body, &req); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if req.AnthropicVersion != anthropicVersion {
		t.Fatalf("expected anthropic_version %q, got %q", anthropicVersion, req.AnthropicVersion)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("expected a single user message, got %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "Quantum Error Correction at Scale") {
		t.Fatal("prompt missing paper title")
	}
}

func TestAnalyzeRejectsEmptyContent(t *testing.T) {
	runtime := &fakeRuntime{body: []byte(`{"content":[]}`)}
	client := &Client{runtime: runtime, modelID: "model"}

	if _, err := client.Analyze(context.Background(), llm.AnalyzeInput{Title: "t"}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestAnalyzeWrapsInvokeError(t *testing.T) {
	runtime := &fakeRuntime{err: errors.New("throttled")}
	client := &Client{runtime: runtime, modelID: "model"}

	if _, err := client.Analyze(context.Background(), llm.AnalyzeInput{Title: "t"}); err == nil {
		t.Fatal("expected invoke error to surface")
	}
}
