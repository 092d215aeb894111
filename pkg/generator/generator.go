// Package generator turns a user prompt into a recorded generation result.
package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pario-ai/codegen/pkg/completion"
	"github.com/pario-ai/codegen/pkg/credential"
	"github.com/pario-ai/codegen/pkg/models"
	"github.com/pario-ai/codegen/pkg/tracker"
)

// ErrEmptyPrompt is returned for prompts that are blank after trimming.
// No outbound call is made for them.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Auditor persists generation history.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Result is the outcome of one submission. Exactly one of Completion and
// Err is set.
type Result struct {
	RequestID  string
	Completion *models.Completion
	Err        *models.CompletionError
	Latency    time.Duration
}

// Display returns the text to show the user: the generated code, or the
// error prefix followed by the failure message.
func (r *Result) Display() string {
	if r.Err != nil {
		return models.ErrorPrefix + r.Err.Message
	}
	if r.Completion == nil {
		return ""
	}
	return r.Completion.Text
}

// Service wires a Completer to usage tracking and history.
type Service struct {
	completer   completion.Completer
	apiKey      string
	fingerprint string
	model       string
	tracker     tracker.Tracker
	auditor     Auditor
	pending     sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithTracker records token usage for network completions.
func WithTracker(t tracker.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithAuditor writes every submission to the history log.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// New creates a Service that calls c with apiKey.
func New(c completion.Completer, apiKey, model string, opts ...Option) *Service {
	s := &Service{
		completer:   c,
		apiKey:      apiKey,
		fingerprint: credential.Fingerprint(apiKey),
		model:       model,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Model returns the model every request is sent to.
func (s *Service) Model() string { return s.model }

// Generate submits prompt once. The only error returned is ErrEmptyPrompt;
// call failures are reported in Result.Err. A whitespace-only prompt counts
// as empty and is never sent, so it cannot spend quota.
func (s *Service) Generate(ctx context.Context, prompt, requestID string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	start := time.Now()
	c, err := s.completer.Complete(ctx, prompt, s.apiKey)
	res := &Result{
		RequestID: requestID,
		Latency:   time.Since(start),
	}
	if err != nil {
		res.Err = models.AsCompletionError(err)
		log.Warn().
			Str("request_id", requestID).
			Str("kind", string(res.Err.Kind)).
			Str("error", res.Err.Message).
			Msg("generation failed")
	} else {
		res.Completion = c
		log.Info().
			Str("request_id", requestID).
			Bool("cached", c.Cached).
			Dur("latency", res.Latency).
			Msg("generation complete")
	}

	s.recordUsage(ctx, res)
	s.audit(prompt, res)
	return res, nil
}

func (s *Service) recordUsage(ctx context.Context, res *Result) {
	if s.tracker == nil || res.Completion == nil || res.Completion.Cached || res.Completion.Usage == nil {
		return
	}
	u := res.Completion.Usage
	model := res.Completion.Model
	if model == "" {
		model = s.model
	}
	err := s.tracker.Record(ctx, models.UsageRecord{
		Fingerprint:      s.fingerprint,
		Model:            model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", res.RequestID).Msg("usage record failed")
	}
}

func (s *Service) audit(prompt string, res *Result) {
	if s.auditor == nil {
		return
	}
	entry := models.AuditEntry{
		RequestID:   res.RequestID,
		Fingerprint: s.fingerprint,
		Model:       s.model,
		Prompt:      prompt,
		LatencyMs:   res.Latency.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if res.Err != nil {
		entry.ErrorKind = string(res.Err.Kind)
		entry.Response = res.Display()
	} else {
		entry.Response = res.Completion.Text
		entry.Cached = res.Completion.Cached
		if res.Completion.Usage != nil {
			entry.TotalTokens = res.Completion.Usage.TotalTokens
		}
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.auditor.Log(context.Background(), entry); err != nil {
			log.Warn().Err(err).Str("request_id", entry.RequestID).Msg("history log failed")
		}
	}()
}

// Wait blocks until pending history writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}
