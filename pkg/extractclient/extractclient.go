// Package extractclient calls the external language-model HTTP endpoint
// that turns a rendered prompt into raw extraction JSON text.
package extractclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
)

const extractorName = "extract-and-score-openai-v1"

// Config configures an extraction client.
type Config struct {
	APIKey        string
	Model         string
	TimeoutSecs   int
	MaxRetries    int
	Endpoint      string // defaults to https://api.openai.com/v1/responses
}

// Response is what the extraction pipeline needs from a model call: which
// extractor handled it, the model that actually responded, latency and
// retry bookkeeping, and the raw extracted text to hand to the validator.
type Response struct {
	ExtractorName     string
	UsedExternalModel bool
	ModelName         string
	ResponseID        string
	LatencyMS         int64
	Retries           int
	RawText           string
}

// Client calls the model provider over HTTP, tolerating both response
// shapes the contract allows, and retries transport/shape/decode failures
// up to MaxRetries+1 total attempts before surfacing a ProviderError.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// New builds an extraction client. cfg.Endpoint defaults to the OpenAI
// Responses API when empty.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1/responses"
	}
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		cfg:        cfg,
		logger:     slog.Default(),
	}
}

type requestBody struct {
	Model string         `json:"model"`
	Text  requestTextFmt `json:"text"`
	Input []requestInput `json:"input"`
}

type requestTextFmt struct {
	Format requestFormat `json:"format"`
}

type requestFormat struct {
	Type string `json:"type"`
}

type requestInput struct {
	Role    string              `json:"role"`
	Content []requestInputChunk `json:"content"`
}

type requestInputChunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseBody struct {
	ID         string            `json:"id"`
	Model      string            `json:"model"`
	Output     []responseOutput  `json:"output"`
	OutputText json.RawMessage   `json:"output_text"`
}

type responseOutput struct {
	Content []responseContentChunk `json:"content"`
}

type responseContentChunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Extract renders the model HTTP request for promptText and retries until
// it gets a non-empty extracted text or exhausts max_retries+1 attempts.
func (c *Client) Extract(ctx context.Context, promptText string) (Response, error) {
	payload := requestBody{
		Model: c.cfg.Model,
		Text:  requestTextFmt{Format: requestFormat{Type: "json_object"}},
		Input: []requestInput{
			{
				Role: "system",
				Content: []requestInputChunk{
					{Type: "input_text", Text: "Return only strict JSON matching the requested schema."},
				},
			},
			{
				Role:    "user",
				Content: []requestInputChunk{{Type: "input_text", Text: promptText}},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, pipelineerrors.New(pipelineerrors.KindProviderError, fmt.Errorf("marshal request: %w", err))
	}

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.attempt(ctx, body, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("extraction attempt failed", "attempt", attempt, "error", err)
	}
	return Response{}, pipelineerrors.New(pipelineerrors.KindProviderError, fmt.Errorf("model request failed after %d attempts: %w", attempts, lastErr))
}

func (c *Client) attempt(ctx context.Context, body []byte, attempt int) (Response, error) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("non-2xx status %d: %s", resp.StatusCode, string(respBytes))
	}

	var parsed responseBody
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	rawText, err := extractOutputText(parsed)
	if err != nil {
		return Response{}, err
	}

	latency := time.Since(started).Milliseconds()
	modelName := parsed.Model
	if modelName == "" {
		modelName = c.cfg.Model
	}
	return Response{
		ExtractorName:     extractorName,
		UsedExternalModel: true,
		ModelName:         modelName,
		ResponseID:        parsed.ID,
		LatencyMS:         latency,
		Retries:           attempt,
		RawText:           rawText,
	}, nil
}

// extractOutputText tolerates both response shapes the contract allows: a
// list of content blocks where text-typed blocks contribute a segment, or
// a flat output_text string (or list of strings). Empty text after all
// parsing is a provider error.
func extractOutputText(body responseBody) (string, error) {
	var segments []string
	for _, item := range body.Output {
		for _, chunk := range item.Content {
			if (chunk.Type == "output_text" || chunk.Type == "text") && strings.TrimSpace(chunk.Text) != "" {
				segments = append(segments, strings.TrimSpace(chunk.Text))
			}
		}
	}
	if len(segments) > 0 {
		return strings.TrimSpace(strings.Join(segments, "\n")), nil
	}

	if len(body.OutputText) > 0 {
		var flat string
		if err := json.Unmarshal(body.OutputText, &flat); err == nil {
			if strings.TrimSpace(flat) != "" {
				return strings.TrimSpace(flat), nil
			}
		} else {
			var list []string
			if err := json.Unmarshal(body.OutputText, &list); err == nil {
				var nonEmpty []string
				for _, s := range list {
					if strings.TrimSpace(s) != "" {
						nonEmpty = append(nonEmpty, strings.TrimSpace(s))
					}
				}
				if joined := strings.TrimSpace(strings.Join(nonEmpty, "\n")); joined != "" {
					return joined, nil
				}
			}
		}
	}

	return "", fmt.Errorf("empty model response")
}
