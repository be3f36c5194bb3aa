package telegram

import (
	"context"
	"time"

	"github.com/m4xw311/telegram-mcp/config"
)

// SendOptions carries the optional parameters of SendMessage.
type SendOptions struct {
	ReplyToMsgID int
	ParseMode    string
}

// GlobalHit is one result of a global search: the raw message plus the
// reference of the chat it was found in, to be resolved by the caller.
type GlobalHit struct {
	Message RawMessage
	ChatRef string
}

// Dialog is one entry of the dialog list.
type Dialog struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Kind        EntityKind `json:"type"`
	UnreadCount int        `json:"unread_count"`
}

// Client is the capability the server requires from the messaging platform.
// Implementations must be safe for concurrent request issuance; the session
// manager owns every instance and is the only component that connects or
// disconnects one.
type Client interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error

	// IsAuthorized reports whether the persisted session state is logged in.
	IsAuthorized(ctx context.Context) (bool, error)

	// Disconnect tears the connection down. Best effort.
	Disconnect(ctx context.Context) error

	// ResolveEntity resolves a chat reference (bare id or username, see
	// NormalizeChatRef) into an Entity.
	ResolveEntity(ctx context.Context, ref string) (Entity, error)

	// IterMessages returns up to limit messages of a chat, newest first,
	// older than offsetID (0 means from the top), optionally matching a
	// search query.
	IterMessages(ctx context.Context, entity Entity, query string, offsetID, limit int) ([]RawMessage, error)

	// GetMessages fetches specific messages by id. The result aligns with
	// ids by position; missing messages are nil entries.
	GetMessages(ctx context.Context, entity Entity, ids []int) ([]*RawMessage, error)

	// SendMessage sends text to a chat.
	SendMessage(ctx context.Context, entity Entity, text string, opts SendOptions) (RawMessage, error)

	// EditMessage replaces the text of an existing message.
	EditMessage(ctx context.Context, entity Entity, messageID int, text string, parseMode string) (RawMessage, error)

	// GlobalSearch searches across all chats.
	GlobalSearch(ctx context.Context, query string, minDate, maxDate time.Time, offsetID, limit int) ([]GlobalHit, error)

	// SearchCounters returns the total number of messages in a chat.
	SearchCounters(ctx context.Context, entity Entity) (int, error)

	// SearchContacts searches contacts and global users by name, username
	// or phone number.
	SearchContacts(ctx context.Context, query string, limit int) ([]Entity, error)

	// InvokeRaw invokes a platform RPC method by its schema name (with the
	// Request suffix applied) and named parameters, returning the result as
	// a nested mapping.
	InvokeRaw(ctx context.Context, method string, params map[string]any) (map[string]any, error)

	// Me returns the entity of the logged-in account.
	Me(ctx context.Context) (Entity, error)

	// Dialogs lists the account's dialogs.
	Dialogs(ctx context.Context, limit int) ([]Dialog, error)
}

// Connector produces an unconnected Client for a bearer token. The empty
// token selects the process-default session. Connectors are injected at the
// application root; see telegramtest.Connector for the in-memory one.
type Connector func(ctx context.Context, cfg *config.Config, token string) (Client, error)
