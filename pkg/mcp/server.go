// Package mcp exposes code generation and its bookkeeping as MCP tools
// over newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/pario-ai/codegen/pkg/generator"
	"github.com/pario-ai/codegen/pkg/models"
	"github.com/pario-ai/codegen/pkg/tracker"
)

// CacheStatter provides cache statistics.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// HistorySearcher queries generation history.
type HistorySearcher interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// Server is a minimal MCP server.
type Server struct {
	gen     *generator.Service
	tracker tracker.Tracker
	cache   CacheStatter
	history HistorySearcher
	version string
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithTracker enables the usage_stats tool.
func WithTracker(t tracker.Tracker) Option { return func(s *Server) { s.tracker = t } }

// WithCache enables the cache_stats tool.
func WithCache(c CacheStatter) Option { return func(s *Server) { s.cache = c } }

// WithHistory enables the history_search tool.
func WithHistory(h HistorySearcher) Option { return func(s *Server) { s.history = h } }

// New creates a Server around gen.
func New(gen *generator.Service, version string, opts ...Option) *Server {
	s := &Server{gen: gen, version: version}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run reads requests from r line by line and writes responses to w until r
// is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.writeResponse(w, *resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "codegen", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		}
	case "notifications/initialized":
		return nil
	case "tools/list":
		resp.Result = ToolsListResult{Tools: s.tools()}
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: "invalid params"}
			return resp
		}
		resp.Result = s.call(ctx, params)
	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}
	}
	return resp
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("mcp: marshal response")
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("mcp: write response")
	}
}
