package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("ai: empty response from model")
	// ErrTransport wraps failures to send the request or read the reply.
	ErrTransport = errors.New("ai: request failed")
)

// APIError is a non-2xx response from the generation endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("ai: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("ai: status %d: %s", e.StatusCode, e.Message)
}

// GeminiOptions configures a GeminiClient.
type GeminiOptions struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultGeminiOptions returns the public endpoint defaults.
func DefaultGeminiOptions() GeminiOptions {
	return GeminiOptions{
		BaseURL: "https://generativelanguage.googleapis.com",
		Model:   "gemini-2.0-flash",
		Timeout: 60 * time.Second,
	}
}

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	baseURL string
	model   string
	timeout time.Duration
}

// NewGeminiClient validates opts and returns a client.
func NewGeminiClient(opts GeminiOptions) (*GeminiClient, error) {
	def := DefaultGeminiOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}

	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &GeminiClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		timeout: opts.Timeout,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
}

// Complete sends one generateContent request.
func (c *GeminiClient) Complete(ctx context.Context, req Completion) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt}}}},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	if req.Schema != nil {
		body.GenerationConfig = geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		}
	}

	statusCode, respBody, err := c.send(ctx, body, req.Credential)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return decodeResponse(statusCode, respBody)
}

// decodeResponse turns a generateContent reply into the generated text.
func decodeResponse(statusCode int, respBody []byte) (string, error) {
	if statusCode < 200 || statusCode >= 300 {
		apiErr := &APIError{StatusCode: statusCode, Message: string(respBody)}
		var ge geminiError
		if json.Unmarshal(respBody, &ge) == nil && ge.Error.Message != "" {
			apiErr.Message = ge.Error.Message
			apiErr.Status = ge.Error.Status
		}
		return "", apiErr
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

var _ LLMClient = (*GeminiClient)(nil)
