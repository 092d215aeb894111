package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pario-ai/codegen/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// MaxResponseSize bounds how much of a response body is read.
const MaxResponseSize = 10 << 20

// Gemini calls the generateContent REST endpoint.
type Gemini struct {
	baseURL string
	model   string
	client  *http.Client
	maxBody int64
}

// NewGemini creates a Gemini client. A zero timeout leaves the HTTP client
// without a deadline.
func NewGemini(baseURL, model string, timeout time.Duration) *Gemini {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		maxBody: MaxResponseSize,
	}
}

// Model returns the configured model identifier.
func (g *Gemini) Model() string { return g.model }

// Complete sends one single-turn request and returns the trimmed text.
func (g *Gemini) Complete(ctx context.Context, prompt, apiKey string) (*models.Completion, error) {
	temp := Temperature
	body, err := json.Marshal(models.GeminiRequest{
		SystemInstruction: &models.GeminiContent{
			Parts: []models.GeminiPart{{Text: SystemInstruction}},
		},
		Contents: []models.GeminiContent{
			{Role: "user", Parts: []models.GeminiPart{{Text: prompt}}},
		},
		GenerationConfig: models.GeminiGenerationConfig{Temperature: &temp},
	})
	if err != nil {
		return nil, models.NewCompletionError(models.ErrorMalformed, "encode request: %v", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewCompletionError(models.ErrorNetwork, "create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewCompletionError(models.ErrorCanceled, "request canceled: %v", err)
		}
		return nil, models.NewCompletionError(models.ErrorNetwork, "%v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBody+1))
	if err != nil {
		return nil, models.NewCompletionError(models.ErrorNetwork, "read response: %v", err)
	}
	if int64(len(raw)) > g.maxBody {
		return nil, models.NewCompletionError(models.ErrorMalformed, "response exceeds %d bytes", g.maxBody)
	}

	log.Debug().
		Str("model", g.model).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gemini response")

	var gr models.GeminiResponse
	decodeErr := json.Unmarshal(raw, &gr)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && gr.Error != nil && gr.Error.Message != "" {
			msg = gr.Error.Message
		}
		ce := models.NewCompletionError(classifyStatus(resp.StatusCode), "status %d: %s", resp.StatusCode, msg)
		ce.StatusCode = resp.StatusCode
		return nil, ce
	}

	if decodeErr != nil {
		return nil, models.NewCompletionError(models.ErrorMalformed, "decode response: %v", decodeErr)
	}
	if gr.Error != nil {
		return nil, models.NewCompletionError(models.ErrorUpstream, "%s", gr.Error.Message)
	}
	if len(gr.Candidates) == 0 {
		return nil, models.NewCompletionError(models.ErrorMalformed, "no candidates in response")
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, models.NewCompletionError(models.ErrorMalformed, "no text in response (finish reason %q)", gr.Candidates[0].FinishReason)
	}

	c := &models.Completion{Text: text, Model: g.model}
	if gr.UsageMetadata != nil {
		c.Usage = gr.UsageMetadata.ToUsage()
	}
	return c, nil
}

func classifyStatus(code int) models.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return models.ErrorAuth
	case code == http.StatusTooManyRequests:
		return models.ErrorQuota
	default:
		return models.ErrorUpstream
	}
}
