// Package completion calls the hosted text-generation endpoint.
package completion

import (
	"context"

	"github.com/pario-ai/codegen/pkg/models"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Temperature keeps output near-deterministic.
const Temperature = 0.2

// SystemInstruction is sent with every request and is not shown to users.
const SystemInstruction = `You are an expert AI code generator. Your task is to ONLY output the raw, complete, and correct code based on the user's request.
DO NOT include any conversational text, explanations, markdown headings, or commentary before or after the code block.
If the user asks for an HTML page, ONLY output the HTML code starting with ` + "`<!DOCTYPE html>`" + `.
If the user asks for a Python script, ONLY output the Python code.
Ensure the code is syntactically correct and ready to run.`

//go:generate mockgen -destination=../mocks/completer_mock/completer_mock.go -package=completer_mock github.com/pario-ai/codegen/pkg/completion Completer

// Completer turns a prompt into generated code.
// Failures are returned as *models.CompletionError.
type Completer interface {
	Complete(ctx context.Context, prompt, apiKey string) (*models.Completion, error)
}
