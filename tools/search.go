package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/search"
	"github.com/m4xw311/telegram-mcp/telegram"
)

func searchMessagesTool() mcp.Tool {
	return mcp.Tool{
		Name: "search_messages",
		Description: "Search Telegram messages globally or within one chat. " +
			"The query is a comma-separated list of terms searched in parallel; " +
			"results are merged, deduplicated and paginated. Global search requires " +
			"a non-empty query; per-chat search with an empty query lists the chat's messages.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated search terms. Each term runs as its own search.",
				},
				"chat_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the search to one chat: numeric id (with or without the -100 prefix) or username.",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum messages to return. Default 50.",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Messages to skip from the start of the merged result. Default 0.",
				},
				"min_date": map[string]interface{}{
					"type":        "string",
					"description": "Oldest message date, RFC 3339 or YYYY-MM-DD. Global search only.",
				},
				"max_date": map[string]interface{}{
					"type":        "string",
					"description": "Newest message date, RFC 3339 or YYYY-MM-DD. Global search only.",
				},
				"chat_type": map[string]interface{}{
					"type":        "string",
					"description": "Filter results by chat type: private, group or channel.",
					"enum":        []string{"private", "group", "channel"},
				},
				"auto_expand_batches": map[string]interface{}{
					"type":        "integer",
					"description": "Extra result batches to fetch when a chat_type filter starves the window. Default 2.",
				},
				"include_total_count": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the chat's total message count. Per-chat search only.",
				},
			},
			Required: []string{"query"},
		},
	}
}

type searchMessagesArgs struct {
	Query             string `json:"query"`
	ChatID            string `json:"chat_id"`
	Limit             *int   `json:"limit"`
	Offset            int    `json:"offset"`
	MinDate           string `json:"min_date"`
	MaxDate           string `json:"max_date"`
	ChatType          string `json:"chat_type"`
	AutoExpandBatches *int   `json:"auto_expand_batches"`
	IncludeTotalCount bool   `json:"include_total_count"`
}

func (h *Handler) searchMessages(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args searchMessagesArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}

	req := search.Request{
		Query:             args.Query,
		ChatID:            args.ChatID,
		Limit:             50,
		Offset:            args.Offset,
		ChatType:          args.ChatType,
		AutoExpandBatches: 2,
		IncludeTotalCount: args.IncludeTotalCount,
	}
	if args.Limit != nil {
		req.Limit = *args.Limit
	}
	if args.AutoExpandBatches != nil {
		req.AutoExpandBatches = *args.AutoExpandBatches
	}

	var err error
	if req.MinDate, err = parseDate(args.MinDate); err != nil {
		return nil, errors.NewKind(errors.KindValidation, "invalid min_date %q: use RFC 3339 or YYYY-MM-DD", args.MinDate)
	}
	if req.MaxDate, err = parseDate(args.MaxDate); err != nil {
		return nil, errors.NewKind(errors.KindValidation, "invalid max_date %q: use RFC 3339 or YYYY-MM-DD", args.MaxDate)
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		return search.Search(ctx, client, req)
	})
}

// parseDate accepts RFC 3339 timestamps and bare dates. The empty string is
// the unset value.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
