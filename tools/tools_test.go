package tools

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m4xw311/telegram-mcp/auth"
	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/search"
	"github.com/m4xw311/telegram-mcp/session"
	"github.com/m4xw311/telegram-mcp/telegram"
	"github.com/m4xw311/telegram-mcp/telegram/telegramtest"
)

func newTestHandler(t *testing.T, cfg *config.Config, client *telegramtest.FakeClient, authRequired bool) *Handler {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	sessions := session.NewManager(cfg, telegramtest.Connector(func(string) *telegramtest.FakeClient {
		return client
	}), session.Options{})
	t.Cleanup(func() { sessions.Cleanup(context.Background()) })
	return NewHandler(cfg, sessions, authRequired)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func TestWrapReturnsErrorRecord(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	handler := h.wrap("search_messages", h.searchMessages)
	result, err := handler(context.Background(), callRequest("search_messages", map[string]any{
		"query": "x",
		"limit": -1,
	}))
	require.NoError(t, err, "tool errors must be returned as records, not propagated")

	record, ok := result.StructuredContent.(ErrorRecord)
	require.True(t, ok, "expected an error record, got %T", result.StructuredContent)
	assert.False(t, record.OK)
	assert.Equal(t, "search_messages", record.Operation)
	assert.Contains(t, record.Error, "limit")
	assert.Contains(t, record.RequestID, "search_messages_")
	assert.Equal(t, "x", record.Params["query"])
}

func TestWrapEnforcesAuth(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), true)

	handler := h.wrap("list_dialogs", h.listDialogs)
	result, err := handler(context.Background(), callRequest("list_dialogs", nil))
	require.NoError(t, err)

	record, ok := result.StructuredContent.(ErrorRecord)
	require.True(t, ok)
	assert.Contains(t, record.Error, "Missing Bearer token")

	// With a token the same call goes through.
	ctx := auth.WithToken(context.Background(), "secret")
	result, err = handler(ctx, callRequest("list_dialogs", nil))
	require.NoError(t, err)
	_, isRecord := result.StructuredContent.(ErrorRecord)
	assert.False(t, isRecord)
}

func TestWrapRecoversPanic(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	handler := h.wrap("boom", func(context.Context, mcp.CallToolRequest) (any, error) {
		panic("kaboom")
	})
	result, err := handler(context.Background(), callRequest("boom", nil))
	require.NoError(t, err)

	record, ok := result.StructuredContent.(ErrorRecord)
	require.True(t, ok)
	assert.Contains(t, record.Error, "kaboom")
}

func TestSearchMessagesTool(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.searchMessages(context.Background(), callRequest("search_messages", map[string]any{
		"query":   "release",
		"chat_id": "@announce",
	}))
	require.NoError(t, err)

	resp, ok := result.(*search.Response)
	require.True(t, ok)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, 2, resp.Messages[0].ID)
	assert.Equal(t, "https://t.me/announce/2", resp.Messages[0].Link)
}

func TestSearchMessagesRejectsBadDate(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	_, err := h.searchMessages(context.Background(), callRequest("search_messages", map[string]any{
		"query":    "x",
		"min_date": "yesterday",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_date")
}

func TestSendMessage(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.sendOrEditMessage(context.Background(), callRequest("send_or_edit_message", map[string]any{
		"chat_id": "announce",
		"message": "hello there",
	}))
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sent", out["status"])
	assert.Equal(t, "hello there", out["text"])
	assert.NotZero(t, out["message_id"])
	_, hasEditDate := out["edit_date"]
	assert.False(t, hasEditDate)
}

func TestEditMessage(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.sendOrEditMessage(context.Background(), callRequest("send_or_edit_message", map[string]any{
		"chat_id":    "@announce",
		"message":    "rewritten",
		"message_id": 2,
	}))
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, "edited", out["status"])
	assert.Equal(t, 2, out["message_id"])
	assert.Equal(t, "rewritten", out["text"])
	assert.NotEmpty(t, out["edit_date"])
}

func TestSendMessageValidation(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	_, err := h.sendOrEditMessage(context.Background(), callRequest("send_or_edit_message", map[string]any{
		"chat_id": "@announce",
		"message": "hi",
		"parse_mode": "bbcode",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse_mode")

	_, err = h.sendOrEditMessage(context.Background(), callRequest("send_or_edit_message", map[string]any{
		"chat_id": "@announce",
		"message": "",
	}))
	require.Error(t, err)
}

func TestReadMessagesMissingID(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.readMessages(context.Background(), callRequest("read_messages", map[string]any{
		"chat_id":     "@announce",
		"message_ids": []any{1, 999, 3},
	}))
	require.NoError(t, err)

	out := result.(map[string]any)
	messages := out["messages"].([]any)
	require.Len(t, messages, 3)

	first, ok := messages[0].(telegram.Message)
	require.True(t, ok)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "https://t.me/announce/1", first.Link)

	missing, ok := messages[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 999, missing["id"])
	assert.Equal(t, "Message not found or inaccessible", missing["error"])

	third := messages[2].(telegram.Message)
	assert.Equal(t, 3, third.ID)
	assert.Equal(t, telegram.LinkNote, out["note"])
}

func TestGenerateLinksTool(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.generateLinks(context.Background(), callRequest("generate_links", map[string]any{
		"chat_id":     "announce",
		"message_ids": []any{1, 2},
	}))
	require.NoError(t, err)

	set := result.(telegram.LinkSet)
	assert.Equal(t, "https://t.me/announce", set.PublicChatLink)
	assert.Equal(t, []string{"https://t.me/announce/1", "https://t.me/announce/2"}, set.MessageLinks)
}

func TestGenerateLinksUnresolvedPrivateChat(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	// An unknown -100 id still produces offline links.
	result, err := h.generateLinks(context.Background(), callRequest("generate_links", map[string]any{
		"chat_id":     "-1007777777",
		"message_ids": []any{12},
	}))
	require.NoError(t, err)

	set := result.(telegram.LinkSet)
	assert.Equal(t, "https://t.me/c/7777777", set.PrivateChatLink)
	assert.Equal(t, []string{"https://t.me/c/7777777/12"}, set.MessageLinks)
}

func TestSearchContactsTool(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.searchContacts(context.Background(), callRequest("search_contacts", map[string]any{
		"query": "alice, bob, alice",
	}))
	require.NoError(t, err)

	out := result.(map[string]any)
	contacts := out["contacts"].([]map[string]any)
	require.Len(t, contacts, 2, "duplicate terms must not duplicate contacts")

	result, err = h.searchContacts(context.Background(), callRequest("search_contacts", map[string]any{
		"query": "alice, bob",
		"limit": 1,
	}))
	require.NoError(t, err)
	assert.Len(t, result.(map[string]any)["contacts"], 1)
}

func TestSearchContactsNoMatch(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	_, err := h.searchContacts(context.Background(), callRequest("search_contacts", map[string]any{
		"query": "nosuchperson",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No contacts found matching query 'nosuchperson'")
}

func TestGetContactDetails(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.getContactDetails(context.Background(), callRequest("get_contact_details", map[string]any{
		"chat_id": "alice",
	}))
	require.NoError(t, err)

	details := result.(map[string]any)
	assert.Equal(t, int64(42), details["id"])
	assert.Equal(t, "@alice", details["canonical_id"])

	// Any resolvable entity works, not only users.
	result, err = h.getContactDetails(context.Background(), callRequest("get_contact_details", map[string]any{
		"chat_id": "@announce",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Channel", result.(map[string]any)["type"])

	_, err = h.getContactDetails(context.Background(), callRequest("get_contact_details", map[string]any{
		"chat_id": "@nobody",
	}))
	require.Error(t, err)
}

func TestGetContactDetailsSelf(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.getContactDetails(context.Background(), callRequest("get_contact_details", map[string]any{
		"chat_id": "me",
	}))
	require.NoError(t, err)

	details := result.(map[string]any)
	assert.Equal(t, int64(1), details["id"])
	assert.Equal(t, "testuser", details["username"])
	assert.Equal(t, "@testuser", details["canonical_id"])
}

func TestInvokeMTProto(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.invokeMTProto(context.Background(), callRequest("invoke_mtproto", map[string]any{
		"method_full_name": "help.GetConfig",
	}))
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, true, out["ok"])
	inner := out["result"].(map[string]any)
	assert.Equal(t, "config", inner["_"])
}

func TestInvokeMTProtoAllowlist(t *testing.T) {
	cfg := &config.Config{AllowedMethods: []string{"help.*"}}
	h := newTestHandler(t, cfg, telegramtest.SampleClient(), false)

	_, err := h.invokeMTProto(context.Background(), callRequest("invoke_mtproto", map[string]any{
		"method_full_name": "messages.DeleteHistory",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the allowed list")

	_, err = h.invokeMTProto(context.Background(), callRequest("invoke_mtproto", map[string]any{
		"method_full_name": "help.GetConfig",
	}))
	require.NoError(t, err)
}

func TestQualifyMethod(t *testing.T) {
	assert.Equal(t, "messages.GetHistoryRequest", qualifyMethod("messages.GetHistory"))
	assert.Equal(t, "messages.GetHistoryRequest", qualifyMethod("messages.GetHistoryRequest"))
	assert.Equal(t, "PingRequest", qualifyMethod("Ping"))
	// The namespace is everything before the first dot.
	assert.Equal(t, "a.b.CRequest", qualifyMethod("a.b.C"))
}

func TestListDialogs(t *testing.T) {
	h := newTestHandler(t, nil, telegramtest.SampleClient(), false)

	result, err := h.listDialogs(context.Background(), callRequest("list_dialogs", nil))
	require.NoError(t, err)

	out := result.(map[string]any)
	dialogs := out["dialogs"].([]telegram.Dialog)
	require.Len(t, dialogs, 2)
	assert.Equal(t, "Announcements", dialogs[0].Name)
}

// stallingClient parks message iteration until its context is cancelled.
type stallingClient struct {
	telegram.Client
	started chan struct{}
}

func (c *stallingClient) IterMessages(ctx context.Context, _ telegram.Entity, _ string, _, _ int) ([]telegram.RawMessage, error) {
	c.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelledToolCallReleasesSession(t *testing.T) {
	client := &stallingClient{Client: telegramtest.SampleClient(), started: make(chan struct{}, 1)}
	cfg := &config.Config{}
	sessions := session.NewManager(cfg, func(context.Context, *config.Config, string) (telegram.Client, error) {
		return client, nil
	}, session.Options{})
	t.Cleanup(func() { sessions.Cleanup(context.Background()) })
	h := NewHandler(cfg, sessions, false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := h.searchMessages(ctx, callRequest("search_messages", map[string]any{
			"query":   "anything",
			"chat_id": "@announce",
		}))
		errCh <- err
	}()

	<-client.started
	cancel()

	err := <-errCh
	require.Error(t, err)

	st := sessions.Stats()
	assert.Equal(t, 0, st.Active, "the handle must be released on the cancel path")
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 0, st.Failed, "cancellation is not a platform failure")
}

func TestToolCallKeepsSessionWarm(t *testing.T) {
	client := telegramtest.SampleClient()
	h := newTestHandler(t, nil, client, false)

	for i := 0; i < 3; i++ {
		_, err := h.listDialogs(context.Background(), callRequest("list_dialogs", nil))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, client.ConnectCalls)
	assert.Equal(t, 0, client.DisconnectCalls)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2025-06-01T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Hour())

	got, err = parseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("june")
	require.Error(t, err)
}
