// Package bedrock implements llm.Client on top of Anthropic Claude models
// served through Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"paperal-backend/internal/llm"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 4000
)

// Client implements llm.Client using the Bedrock runtime InvokeModel API.
type Client struct {
	runtime invoker
	modelID string
}

type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// NewClient constructs a Bedrock client for the given model.
func NewClient(ctx context.Context, region, modelID string) (*Client, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Bedrock")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Client{
		runtime: bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

// Analyze invokes Claude with the analysis prompt and returns the model text.
func (c *Client) Analyze(ctx context.Context, input llm.AnalyzeInput) (string, error) {
	prompt := llm.BuildAnalysisPrompt(input)

	payload, err := json.Marshal(claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("bedrock request timeout: %w", err)
		}
		return "", fmt.Errorf("bedrock invoke model=%s: %w", c.modelID, err)
	}

	var parsed claudeResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return "", fmt.Errorf("bedrock response parse: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("bedrock response missing content")
	}

	text := strings.TrimSpace(parsed.Content[0].Text)
	if text == "" {
		return "", fmt.Errorf("bedrock response empty content")
	}
	logUsage(c.modelID, parsed.Usage)
	return text, nil
}

func logUsage(model string, usage *struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}) {
	if usage == nil {
		log.Printf("llm response model=%s", model)
		return
	}
	log.Printf("llm response model=%s input_tokens=%d output_tokens=%d", model, usage.InputTokens, usage.OutputTokens)
}

var _ llm.Client = (*Client)(nil)
