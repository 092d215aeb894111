package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/codegen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiReply(text string) models.GeminiResponse {
	return models.GeminiResponse{
		Candidates: []models.GeminiCandidate{{
			Content:      models.GeminiContent{Role: "model", Parts: []models.GeminiPart{{Text: text}}},
			FinishReason: "STOP",
		}},
		UsageMetadata: &models.GeminiUsage{PromptTokenCount: 12, CandidatesTokenCount: 8, TotalTokenCount: 20},
	}
}

func TestGeminiComplete(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-goog-api-key"))

		var req models.GeminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, SystemInstruction, req.SystemInstruction.Parts[0].Text)
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "A function that adds two numbers", req.Contents[0].Parts[0].Text)
		require.NotNil(t, req.GenerationConfig.Temperature)
		assert.InDelta(t, 0.2, *req.GenerationConfig.Temperature, 1e-9)

		json.NewEncoder(w).Encode(geminiReply("\n  def add(a,b): return a+b  \n"))
	}))
	defer upstream.Close()

	g := NewGemini(upstream.URL, "", 0)
	c, err := g.Complete(context.Background(), "A function that adds two numbers", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "def add(a,b): return a+b", c.Text)
	assert.Equal(t, DefaultModel, c.Model)
	require.NotNil(t, c.Usage)
	assert.Equal(t, 20, c.Usage.TotalTokens)
	assert.False(t, c.Cached)
}

func TestGeminiJoinsParts(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := geminiReply("print(")
		resp.Candidates[0].Content.Parts = append(resp.Candidates[0].Content.Parts, models.GeminiPart{Text: "1)"})
		json.NewEncoder(w).Encode(resp)
	}))
	defer upstream.Close()

	c, err := NewGemini(upstream.URL, "m", 0).Complete(context.Background(), "p", "k")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", c.Text)
}

func TestGeminiOversizedResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiReply(strings.Repeat("x", 512)))
	}))
	defer upstream.Close()

	g := NewGemini(upstream.URL, "m", 0)
	g.maxBody = 128

	c, err := g.Complete(context.Background(), "p", "k")
	assert.Nil(t, c)
	require.Error(t, err)
	ce := models.AsCompletionError(err)
	assert.Equal(t, models.ErrorMalformed, ce.Kind)
	assert.Contains(t, ce.Message, "exceeds 128 bytes")

	g.maxBody = MaxResponseSize
	c, err = g.Complete(context.Background(), "p", "k")
	require.NoError(t, err)
	assert.Len(t, c.Text, 512)
}

func TestGeminiErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   models.ErrorKind
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"API key not valid"}}`, models.ErrorAuth, "API key not valid"},
		{"forbidden", http.StatusForbidden, `denied`, models.ErrorAuth, "denied"},
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource exhausted"}}`, models.ErrorQuota, "Resource exhausted"},
		{"server", http.StatusInternalServerError, `{"error":{"code":500,"message":"internal"}}`, models.ErrorUpstream, "internal"},
		{"bad json", http.StatusOK, `{not json`, models.ErrorMalformed, "decode response"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, models.ErrorMalformed, "no candidates"},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]},"finishReason":"SAFETY"}]}`, models.ErrorMalformed, "SAFETY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer upstream.Close()

			c, err := NewGemini(upstream.URL, "m", 0).Complete(context.Background(), "p", "k")
			assert.Nil(t, c)
			require.Error(t, err)

			ce := models.AsCompletionError(err)
			assert.Equal(t, tc.kind, ce.Kind)
			assert.Contains(t, ce.Message, tc.msg)
			assert.True(t, strings.HasPrefix(models.Display(c, err), models.ErrorPrefix))
		})
	}
}

func TestGeminiNetworkError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	_, err := NewGemini(url, "m", time.Second).Complete(context.Background(), "p", "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrorNetwork, models.AsCompletionError(err).Kind)
}

func TestGeminiCanceled(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGemini(upstream.URL, "m", 0).Complete(ctx, "p", "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrorCanceled, models.AsCompletionError(err).Kind)
}
