// Package server serves the code generator page, JSON API and WebSocket.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pario-ai/codegen/pkg/config"
	"github.com/pario-ai/codegen/pkg/generator"
	"github.com/pario-ai/codegen/pkg/highlight"
	"github.com/pario-ai/codegen/pkg/models"
)

//go:embed templates/index.html
var templates embed.FS

var page = template.Must(template.ParseFS(templates, "templates/index.html"))

// StatsSource reports cache statistics.
type StatsSource interface {
	Stats() (models.CacheStats, error)
}

// Server is the presentation shell.
type Server struct {
	cfg         *config.Config
	gen         *generator.Service
	highlighter *highlight.Highlighter
	stats       StatsSource
	validate    *validator.Validate
	upgrader    websocket.Upgrader
	mux         *http.ServeMux
}

// New creates a Server. stats may be nil when caching is disabled.
func New(cfg *config.Config, gen *generator.Service, hl *highlight.Highlighter, stats StatsSource) *Server {
	s := &Server{
		cfg:         cfg,
		gen:         gen,
		highlighter: hl,
		stats:       stats,
		validate:    newValidator(),
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /generate", s.handleGenerateForm)
	s.mux.HandleFunc("POST /api/generate", s.handleGenerateAPI)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

// newValidator returns a validator with the notblank rule registered.
// Request validation depends on that rule, so a failed registration panics.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank: %v", err))
	}
	return v
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Listen).Str("model", s.gen.Model()).Msg("codegen listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type pageData struct {
	Prompt    string
	Submitted bool
	Text      string
	HTML      template.HTML
	Language  string
	Error     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, pageData{})
}

func (s *Server) handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	prompt := r.PostFormValue("prompt")
	data := pageData{Prompt: prompt}

	res, err := s.gen.Generate(context.WithoutCancel(r.Context()), prompt, requestID(w, r))
	if errors.Is(err, generator.ErrEmptyPrompt) {
		s.renderPage(w, data)
		return
	}

	data.Submitted = true
	if res.Err != nil {
		data.Error = res.Display()
	} else {
		out, lang := s.highlighter.Render(res.Completion.Text, r.PostFormValue("language"))
		data.Text = res.Completion.Text
		data.HTML = template.HTML(out)
		data.Language = lang
	}
	s.renderPage(w, data)
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render page")
	}
}

type generateRequest struct {
	Prompt   string `json:"prompt" validate:"notblank"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

type generateResponse struct {
	RequestID string                  `json:"request_id"`
	Text      string                  `json:"text"`
	Display   string                  `json:"display"`
	Language  string                  `json:"language,omitempty"`
	HTML      string                  `json:"html,omitempty"`
	Cached    bool                    `json:"cached"`
	Model     string                  `json:"model"`
	Error     *models.CompletionError `json:"error,omitempty"`
}

func (s *Server) handleGenerateAPI(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	resp, err := s.generate(context.WithoutCancel(r.Context()), req, requestID(w, r))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusOK
	if resp.Error != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// generate runs one submission and shapes it for the JSON and WebSocket APIs.
func (s *Server) generate(ctx context.Context, req generateRequest, reqID string) (*generateResponse, error) {
	res, err := s.gen.Generate(ctx, req.Prompt, reqID)
	if err != nil {
		return nil, err
	}

	resp := &generateResponse{
		RequestID: reqID,
		Display:   res.Display(),
		Model:     s.gen.Model(),
		Error:     res.Err,
	}
	if res.Completion != nil {
		resp.Text = res.Completion.Text
		resp.Cached = res.Completion.Cached
		if res.Completion.Model != "" {
			resp.Model = res.Completion.Model
		}
		resp.HTML, resp.Language = s.highlighter.Render(res.Completion.Text, req.Language)
	}
	return resp, nil
}

type statusResponse struct {
	Status string             `json:"status"`
	Model  string             `json:"model"`
	Cache  *models.CacheStats `json:"cache,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: "ok", Model: s.gen.Model()}
	if s.stats != nil {
		st, err := s.stats.Stats()
		if err != nil {
			log.Warn().Err(err).Msg("cache stats")
		} else {
			resp.Cache = &st
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type wsMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	*generateResponse
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	for {
		var req generateRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}

		if err := s.validate.Struct(req); err != nil {
			if err := conn.WriteJSON(wsMessage{Type: "error", Message: "invalid request: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(wsMessage{Type: "busy"}); err != nil {
			return
		}

		resp, err := s.generate(context.Background(), req, uuid.NewString())
		msg := wsMessage{Type: "result", generateResponse: resp}
		if err != nil {
			msg = wsMessage{Type: "error", Message: err.Error()}
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// requestID returns a fresh ID for the submission's history row. A
// client-supplied X-Request-ID is only echoed on the response, so reusing
// one never overwrites earlier history.
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := uuid.NewString()
	echo := r.Header.Get("X-Request-ID")
	if echo == "" {
		echo = id
	} else {
		log.Debug().Str("request_id", id).Str("client_request_id", echo).Msg("client request id")
	}
	w.Header().Set("X-Request-ID", echo)
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"kind":"request","code":%d}}`, message, code)
}
