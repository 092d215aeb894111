package models

import (
	"errors"
	"fmt"
)

// ErrorPrefix starts the display form of every failed completion.
const ErrorPrefix = "An error occurred: "

// ErrorKind classifies a failed completion.
type ErrorKind string

const (
	ErrorAuth      ErrorKind = "auth"
	ErrorQuota     ErrorKind = "quota"
	ErrorNetwork   ErrorKind = "network"
	ErrorMalformed ErrorKind = "malformed"
	ErrorUpstream  ErrorKind = "upstream"
	ErrorCanceled  ErrorKind = "canceled"
)

// Completion is the successful result of a single generation call.
type Completion struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	Usage  *Usage `json:"usage,omitempty"`
	Cached bool   `json:"cached"`
}

// CompletionError is a classified generation failure.
type CompletionError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewCompletionError builds a CompletionError from a formatted message.
func NewCompletionError(kind ErrorKind, format string, args ...any) *CompletionError {
	return &CompletionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsCompletionError extracts a CompletionError from err. Unclassified errors
// are reported as upstream failures.
func AsCompletionError(err error) *CompletionError {
	if err == nil {
		return nil
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	return &CompletionError{Kind: ErrorUpstream, Message: err.Error()}
}

// Display returns the text shown to the user for a generation outcome.
func Display(c *Completion, err error) string {
	if err != nil {
		return ErrorPrefix + AsCompletionError(err).Message
	}
	if c == nil {
		return ""
	}
	return c.Text
}

// GeminiPart is a single text part of a Gemini content block.
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiContent is a role-tagged list of parts.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiGenerationConfig holds sampling parameters.
type GeminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// GeminiRequest is a generateContent request body.
type GeminiRequest struct {
	SystemInstruction *GeminiContent         `json:"systemInstruction,omitempty"`
	Contents          []GeminiContent        `json:"contents"`
	GenerationConfig  GeminiGenerationConfig `json:"generationConfig"`
}

// GeminiCandidate is one generated alternative.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiUsage holds token counts from a generateContent response.
type GeminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GeminiError is the error object returned by the API.
type GeminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GeminiResponse is a generateContent response body.
type GeminiResponse struct {
	Candidates    []GeminiCandidate `json:"candidates"`
	UsageMetadata *GeminiUsage      `json:"usageMetadata,omitempty"`
	ModelVersion  string            `json:"modelVersion,omitempty"`
	Error         *GeminiError      `json:"error,omitempty"`
}

// ToUsage converts GeminiUsage to the standard Usage type.
func (u *GeminiUsage) ToUsage() *Usage {
	return &Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}
