// Package tools registers the MCP tool surface and wraps every handler in
// the error-handling and auth-context interceptors.
package tools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/m4xw311/telegram-mcp/auth"
	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/logger"
	"github.com/m4xw311/telegram-mcp/session"
	"github.com/m4xw311/telegram-mcp/telegram"
	"github.com/m4xw311/telegram-mcp/telemetry"
)

// Handler owns the dependencies shared by every tool: the session pool and
// the server configuration. Tools hold no state of their own.
type Handler struct {
	sessions     *session.Manager
	cfg          *config.Config
	authRequired bool
}

// NewHandler creates the tool handler. authRequired enforces a bearer
// token before any tool body runs; it is false on the stdio transport and
// in test mode.
func NewHandler(cfg *config.Config, sessions *session.Manager, authRequired bool) *Handler {
	return &Handler{sessions: sessions, cfg: cfg, authRequired: authRequired}
}

// body is a tool implementation: it returns the structured result that the
// interceptor serialises, or an error it converts into the error record.
type body func(ctx context.Context, request mcp.CallToolRequest) (any, error)

// Register adds every tool to the MCP server.
func (h *Handler) Register(s *server.MCPServer) {
	s.AddTool(searchMessagesTool(), h.wrap("search_messages", h.searchMessages))
	s.AddTool(sendOrEditMessageTool(), h.wrap("send_or_edit_message", h.sendOrEditMessage))
	s.AddTool(readMessagesTool(), h.wrap("read_messages", h.readMessages))
	s.AddTool(generateLinksTool(), h.wrap("generate_links", h.generateLinks))
	s.AddTool(searchContactsTool(), h.wrap("search_contacts", h.searchContacts))
	s.AddTool(getContactDetailsTool(), h.wrap("get_contact_details", h.getContactDetails))
	s.AddTool(invokeMTProtoTool(), h.wrap("invoke_mtproto", h.invokeMTProto))
	s.AddTool(listDialogsTool(), h.wrap("list_dialogs", h.listDialogs))
}

// ErrorRecord is the structured failure shape shared by every tool. It is
// returned as the tool result rather than propagated, so callers always
// receive the operation name, a request id and their own arguments back.
type ErrorRecord struct {
	OK        bool           `json:"ok"`
	Error     string         `json:"error"`
	Operation string         `json:"operation"`
	RequestID string         `json:"request_id"`
	Params    map[string]any `json:"params"`
}

// wrap applies the interceptor chain: error handling outermost, then the
// auth-context check, then the tool body.
func (h *Handler) wrap(operation string, fn body) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		requestID := operation + "_" + uuid.NewString()

		result, err := h.dispatch(ctx, request, fn)
		if err != nil {
			telemetry.ObserveToolCall(operation, "error", time.Since(start))
			logger.Errorw("tool call failed",
				"tool", operation, "request_id", requestID, "error", err, "kind", errors.KindOf(err))
			record := ErrorRecord{
				Error:     err.Error(),
				Operation: operation,
				RequestID: requestID,
				Params:    request.GetArguments(),
			}
			return mcp.NewToolResultStructuredOnly(record), nil
		}

		telemetry.ObserveToolCall(operation, "ok", time.Since(start))
		logger.Debugw("tool call complete", "tool", operation, "request_id", requestID)
		return mcp.NewToolResultStructuredOnly(result), nil
	}
}

// dispatch runs the auth interceptor and the body, converting panics into
// errors so the error record is the only failure surface.
func (h *Handler) dispatch(ctx context.Context, request mcp.CallToolRequest, fn body) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewKind(errors.KindInternal, "panic in tool body: %v", r)
		}
	}()

	token, err := auth.Require(ctx, h.authRequired)
	if err != nil {
		return nil, err
	}
	return fn(auth.WithToken(ctx, token), request)
}

// withClient acquires the caller's session for the duration of fn and
// releases it on every exit path. Unavailable platform errors condemn the
// session so the cleaner replaces it.
func (h *Handler) withClient(ctx context.Context, fn func(ctx context.Context, client telegram.Client) (any, error)) (any, error) {
	token, _ := auth.TokenFromContext(ctx)
	handle, err := h.sessions.Acquire(ctx, token)
	if err != nil {
		return nil, err
	}
	defer h.sessions.Release(handle)

	result, err := fn(ctx, handle.Client())
	if err != nil && errors.IsKind(err, errors.KindUnavailable) {
		h.sessions.MarkFailed(handle)
	}
	return result, err
}
