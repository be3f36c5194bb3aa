package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/telegram"
)

func generateLinksTool() mcp.Tool {
	return mcp.Tool{
		Name: "generate_links",
		Description: "Build t.me deep links for a chat and a list of message ids. " +
			"Public chats (usernames) produce links anyone can open; private chats " +
			"produce t.me/c/ links that only work for members.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": map[string]interface{}{
					"type":        "string",
					"description": "Chat identifier: username (with or without @) or numeric id.",
				},
				"message_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Message ids to link to.",
				},
				"thread_id": map[string]interface{}{
					"type":        "integer",
					"description": "Forum topic or thread id to address the message within.",
				},
				"comment_id": map[string]interface{}{
					"type":        "integer",
					"description": "Comment id appended as the comment= parameter.",
				},
				"media_timestamp": map[string]interface{}{
					"type":        "integer",
					"description": "Playback position in seconds, appended as the t= parameter.",
				},
			},
			Required: []string{"chat_id", "message_ids"},
		},
	}
}

type generateLinksArgs struct {
	ChatID         string `json:"chat_id"`
	MessageIDs     []int  `json:"message_ids"`
	ThreadID       int    `json:"thread_id"`
	CommentID      int    `json:"comment_id"`
	MediaTimestamp int    `json:"media_timestamp"`
}

func (h *Handler) generateLinks(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args generateLinksArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	if args.ChatID == "" {
		return nil, errors.NewKind(errors.KindValidation, "chat_id must not be empty")
	}
	if len(args.MessageIDs) == 0 {
		return nil, errors.NewKind(errors.KindValidation, "message_ids must not be empty")
	}

	// Resolve through the session so bare usernames and -100 ids both land
	// on the canonical identifier. Resolution failures fall back to treating
	// the given identifier as canonical, matching offline link building.
	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		canonical := args.ChatID
		if entity, err := client.ResolveEntity(ctx, telegram.NormalizeChatRef(args.ChatID)); err == nil {
			canonical = entity.CanonicalID()
		}
		set := telegram.GenerateLinks(canonical, args.MessageIDs, telegram.LinkOptions{
			ThreadID:       args.ThreadID,
			CommentID:      args.CommentID,
			MediaTimestamp: args.MediaTimestamp,
		})
		if set.PublicChatLink == "" && set.PrivateChatLink == "" {
			return nil, errors.NewKind(errors.KindValidation, "cannot build links for chat %q", args.ChatID)
		}
		return set, nil
	})
}
