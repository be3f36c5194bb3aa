package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/telegram"
)

func sendOrEditMessageTool() mcp.Tool {
	return mcp.Tool{
		Name: "send_or_edit_message",
		Description: "Send a new message to a chat, or edit an existing one when " +
			"message_id is given. The target is a numeric chat id or a username.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": map[string]interface{}{
					"type":        "string",
					"description": "Target chat: numeric id or username.",
				},
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Message text.",
				},
				"reply_to_msg_id": map[string]interface{}{
					"type":        "integer",
					"description": "Id of the message to reply to. Sending only.",
				},
				"parse_mode": map[string]interface{}{
					"type":        "string",
					"description": "Text formatting: markdown or html. Plain text when omitted.",
					"enum":        []string{"markdown", "html"},
				},
				"message_id": map[string]interface{}{
					"type":        "integer",
					"description": "Id of an existing message to edit instead of sending.",
				},
			},
			Required: []string{"chat_id", "message"},
		},
	}
}

type sendOrEditArgs struct {
	ChatID       string `json:"chat_id"`
	Message      string `json:"message"`
	ReplyToMsgID int    `json:"reply_to_msg_id"`
	ParseMode    string `json:"parse_mode"`
	MessageID    int    `json:"message_id"`
}

func (h *Handler) sendOrEditMessage(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args sendOrEditArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	if args.ChatID == "" {
		return nil, errors.NewKind(errors.KindValidation, "chat_id must not be empty")
	}
	if args.Message == "" {
		return nil, errors.NewKind(errors.KindValidation, "message must not be empty")
	}
	switch args.ParseMode {
	case "", "markdown", "html":
	default:
		return nil, errors.NewKind(errors.KindValidation, "invalid parse_mode %q: must be markdown or html", args.ParseMode)
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		entity, err := client.ResolveEntity(ctx, telegram.NormalizeSendRef(args.ChatID))
		if err != nil {
			return nil, errors.WrapKind(errors.KindNotFound, err, "could not resolve chat %q", args.ChatID)
		}

		var (
			raw    telegram.RawMessage
			status string
		)
		if args.MessageID != 0 {
			raw, err = client.EditMessage(ctx, entity, args.MessageID, args.Message, args.ParseMode)
			status = "edited"
		} else {
			raw, err = client.SendMessage(ctx, entity, args.Message, telegram.SendOptions{
				ReplyToMsgID: args.ReplyToMsgID,
				ParseMode:    args.ParseMode,
			})
			status = "sent"
		}
		if err != nil {
			return nil, errors.Wrapf(err, "could not %s message in chat %q", verb(status), args.ChatID)
		}

		result := map[string]any{
			"message_id": raw.ID,
			"date":       raw.Date.UTC().Format(time.RFC3339),
			"chat":       entity.Dict(),
			"text":       raw.TextOrCaption(),
			"status":     status,
		}
		if sender := raw.SenderID; sender != 0 {
			result["sender"] = map[string]any{"id": sender}
		}
		if !raw.EditDate.IsZero() {
			result["edit_date"] = raw.EditDate.UTC().Format(time.RFC3339)
		}
		return result, nil
	})
}

func verb(status string) string {
	if status == "edited" {
		return "edit"
	}
	return "send"
}

func readMessagesTool() mcp.Tool {
	return mcp.Tool{
		Name: "read_messages",
		Description: "Fetch specific messages from a chat by id. Ids that do not " +
			"exist produce per-message error entries instead of failing the call.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": map[string]interface{}{
					"type":        "string",
					"description": "Chat to read from: numeric id or username.",
				},
				"message_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Ids of the messages to fetch.",
				},
			},
			Required: []string{"chat_id", "message_ids"},
		},
	}
}

type readMessagesArgs struct {
	ChatID     string `json:"chat_id"`
	MessageIDs []int  `json:"message_ids"`
}

func (h *Handler) readMessages(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args readMessagesArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	if args.ChatID == "" {
		return nil, errors.NewKind(errors.KindValidation, "chat_id must not be empty")
	}
	if len(args.MessageIDs) == 0 {
		return nil, errors.NewKind(errors.KindValidation, "message_ids must not be empty")
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		entity, err := client.ResolveEntity(ctx, telegram.NormalizeChatRef(args.ChatID))
		if err != nil {
			return nil, errors.WrapKind(errors.KindNotFound, err, "could not resolve chat %q", args.ChatID)
		}

		raws, err := client.GetMessages(ctx, entity, args.MessageIDs)
		if err != nil {
			return nil, errors.Wrapf(err, "could not fetch messages from chat %q", args.ChatID)
		}

		canonical := entity.CanonicalID()
		links := telegram.GenerateLinks(canonical, args.MessageIDs, telegram.LinkOptions{})

		// The platform does not guarantee positional alignment, so match by
		// id before declaring a message missing.
		byID := make(map[int]*telegram.RawMessage, len(raws))
		for _, raw := range raws {
			if raw != nil {
				byID[raw.ID] = raw
			}
		}

		messages := make([]any, 0, len(args.MessageIDs))
		for i, id := range args.MessageIDs {
			raw := byID[id]
			if raw == nil {
				messages = append(messages, map[string]any{
					"id":    id,
					"chat":  entity.Dict(),
					"error": "Message not found or inaccessible",
				})
				continue
			}
			link := ""
			if i < len(links.MessageLinks) {
				link = links.MessageLinks[i]
			}
			messages = append(messages, telegram.BuildMessage(ctx, client, *raw, entity, link))
		}

		return map[string]any{
			"chat":     entity.Dict(),
			"messages": messages,
			"note":     telegram.LinkNote,
		}, nil
	})
}
