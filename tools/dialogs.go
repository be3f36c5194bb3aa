package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/telegram"
)

func listDialogsTool() mcp.Tool {
	return mcp.Tool{
		Name: "list_dialogs",
		Description: "List the account's open dialogs (chats, groups and " +
			"channels) with unread counts, most recent first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum dialogs to return. Default 50.",
				},
			},
		},
	}
}

type listDialogsArgs struct {
	Limit *int `json:"limit"`
}

func (h *Handler) listDialogs(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args listDialogsArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	limit := 50
	if args.Limit != nil {
		limit = *args.Limit
	}
	if limit < 1 {
		return nil, errors.NewKind(errors.KindValidation, "limit must be at least 1")
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		dialogs, err := client.Dialogs(ctx, limit)
		if err != nil {
			return nil, errors.Wrapf(err, "could not list dialogs")
		}
		if dialogs == nil {
			dialogs = []telegram.Dialog{}
		}
		return map[string]any{"dialogs": dialogs}, nil
	})
}
