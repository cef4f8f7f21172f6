// Package mcp exposes tracked mentions, sentiment and budget state as Model
// Context Protocol tools over newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/scheduler"
	"github.com/pario-ai/tickerpulse/pkg/tracker"
)

const maxLine = 1024 * 1024

// CacheStatter provides prompt cache statistics.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// BudgetViewer reports the persisted budget. It is read on every call.
type BudgetViewer interface {
	Snapshot(ctx context.Context) (scheduler.Snapshot, error)
}

// AuditQuerier searches the call audit log.
type AuditQuerier interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// Options configures a Server. Only Tracker is required; tools backed by a
// nil dependency answer "not configured".
type Options struct {
	Tracker tracker.Tracker
	Budget  BudgetViewer
	Cache   CacheStatter
	Auditor AuditQuerier
	Version string
	Logger  *zap.Logger
}

// Server is a minimal MCP server.
type Server struct {
	tracker tracker.Tracker
	budget  BudgetViewer
	cache   CacheStatter
	auditor AuditQuerier
	version string
	logger  *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		tracker: opts.Tracker,
		budget:  opts.Budget,
		cache:   opts.Cache,
		auditor: opts.Auditor,
		version: opts.Version,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Run reads one request per line from r and writes responses to w.
// It blocks until r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

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
			s.write(w, Response{
				JSONRPC: jsonrpcVersion,
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, *resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.reply(req, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "tickerpulse", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.reply(req, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return &Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func (s *Server) reply(req *Request, result any) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: result}
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInvalidParams, Message: "invalid params"},
		}
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return s.reply(req, errorResult("unknown tool: "+params.Name))
	}
	s.logger.Debug("Tool call", zap.String("tool", params.Name))
	return s.reply(req, handler(ctx, s, params.Arguments))
}

func (s *Server) write(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Marshal response", zap.Error(err))
		return
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Error("Write response", zap.Error(err))
	}
}
