package tools

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/telegram"
)

func invokeMTProtoTool() mcp.Tool {
	return mcp.Tool{
		Name: "invoke_mtproto",
		Description: "Invoke a raw MTProto method by its schema name, e.g. " +
			"messages.GetHistory or help.GetConfig. The Request suffix is " +
			"appended automatically. Parameters are a JSON object of the " +
			"method's named arguments.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"method_full_name": map[string]interface{}{
					"type":        "string",
					"description": "Fully qualified method name, namespace.Method.",
				},
				"params": map[string]interface{}{
					"type":        "object",
					"description": "Named method arguments.",
				},
			},
			Required: []string{"method_full_name"},
		},
	}
}

type invokeMTProtoArgs struct {
	Method string         `json:"method_full_name"`
	Params map[string]any `json:"params"`
}

func (h *Handler) invokeMTProto(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args invokeMTProtoArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	method := strings.TrimSpace(args.Method)
	if method == "" {
		return nil, errors.NewKind(errors.KindValidation, "method_full_name must not be empty")
	}
	if !methodAllowed(method, h.cfg.AllowedMethods) {
		return nil, errors.NewKind(errors.KindUnauthorized, "method %q is not in the allowed list", method)
	}

	qualified := qualifyMethod(method)
	params := args.Params
	if params == nil {
		params = map[string]any{}
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		result, err := client.InvokeRaw(ctx, qualified, params)
		if err != nil {
			return nil, errors.Wrapf(err, "method %q failed", qualified)
		}
		return map[string]any{"ok": true, "result": result}, nil
	})
}

// qualifyMethod splits the name at the first dot into namespace and class
// and appends the Request suffix when it is missing, so callers can name
// methods the way the schema documents them.
func qualifyMethod(method string) string {
	namespace, name := "", method
	if i := strings.Index(method, "."); i >= 0 {
		namespace, name = method[:i+1], method[i+1:]
	}
	if !strings.HasSuffix(name, "Request") {
		name += "Request"
	}
	return namespace + name
}

// methodAllowed checks the caller-supplied method name against the allowlist
// patterns. An empty allowlist permits everything. Matching happens on the
// name as given, before the Request suffix is applied.
func methodAllowed(method string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, method); err == nil && ok {
			return true
		}
	}
	return false
}
