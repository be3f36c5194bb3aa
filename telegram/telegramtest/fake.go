// Package telegramtest provides an in-memory telegram.Client for tests and
// for running the server in --test-mode without platform credentials.
package telegramtest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/telegram"
)

// Chat couples an entity with its message history, oldest first.
type Chat struct {
	Entity   telegram.Entity
	Messages []telegram.RawMessage
}

// RawMethod is a fake implementation of one platform RPC method.
type RawMethod func(params map[string]any) (map[string]any, error)

// FakeClient is an in-memory telegram.Client. All methods are safe for
// concurrent use.
type FakeClient struct {
	mu         sync.Mutex
	connected  bool
	authorized bool
	chats      []*Chat
	byRef      map[string]*Chat
	contacts   []telegram.Entity
	rawMethods map[string]RawMethod
	me         telegram.Entity
	nextID     int

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
	// ConnectCalls counts Connect invocations.
	ConnectCalls int
	// DisconnectCalls counts Disconnect invocations.
	DisconnectCalls int
}

// NewFakeClient returns an empty, authorized client.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		authorized: true,
		byRef:      make(map[string]*Chat),
		rawMethods: make(map[string]RawMethod),
		me:         telegram.Entity{ID: 1, Kind: telegram.EntityUser, FirstName: "Test", Username: "testuser"},
		nextID:     1000,
	}
}

// SetAuthorized controls the IsAuthorized answer.
func (f *FakeClient) SetAuthorized(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = ok
}

// AddChat registers a chat resolvable by its id and username and indexes
// its messages. Messages are kept sorted by ascending id.
func (f *FakeClient) AddChat(entity telegram.Entity, messages ...telegram.RawMessage) *Chat {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat := &Chat{Entity: entity, Messages: messages}
	sort.Slice(chat.Messages, func(i, j int) bool { return chat.Messages[i].ID < chat.Messages[j].ID })
	f.chats = append(f.chats, chat)
	f.byRef[strconv.FormatInt(entity.ID, 10)] = chat
	if entity.Username != "" {
		f.byRef[entity.Username] = chat
		f.byRef["@"+entity.Username] = chat
	}
	return chat
}

// AddContact registers an entity returned by SearchContacts.
func (f *FakeClient) AddContact(entity telegram.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, entity)
}

// RegisterRawMethod installs a fake RPC method under its full schema name
// (with the Request suffix).
func (f *FakeClient) RegisterRawMethod(name string, fn RawMethod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawMethods[name] = fn
}

// Calls returns the connect and disconnect call counts. Safe to poll while
// the client is in use.
func (f *FakeClient) Calls() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConnectCalls, f.DisconnectCalls
}

// Connect implements telegram.Client.
func (f *FakeClient) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

// IsAuthorized implements telegram.Client.
func (f *FakeClient) IsAuthorized(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized, nil
}

// Disconnect implements telegram.Client.
func (f *FakeClient) Disconnect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DisconnectCalls++
	f.connected = false
	return nil
}

// ResolveEntity implements telegram.Client.
func (f *FakeClient) ResolveEntity(_ context.Context, ref string) (telegram.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chat, ok := f.byRef[ref]; ok {
		return chat.Entity, nil
	}
	for _, c := range f.contacts {
		if strconv.FormatInt(c.ID, 10) == ref || c.Username == strings.TrimPrefix(ref, "@") {
			return c, nil
		}
	}
	if strconv.FormatInt(f.me.ID, 10) == ref {
		return f.me, nil
	}
	return telegram.Entity{}, errors.NewKind(errors.KindNotFound, "no entity for %q", ref)
}

// IterMessages implements telegram.Client: newest first, ids strictly below
// offsetID when offsetID > 0, case-insensitive substring query match.
func (f *FakeClient) IterMessages(_ context.Context, entity telegram.Entity, query string, offsetID, limit int) ([]telegram.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.byRef[strconv.FormatInt(entity.ID, 10)]
	if !ok {
		return nil, errors.NewKind(errors.KindNotFound, "no chat for id %d", entity.ID)
	}
	var out []telegram.RawMessage
	for i := len(chat.Messages) - 1; i >= 0; i-- {
		m := chat.Messages[i]
		if offsetID > 0 && m.ID >= offsetID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.TextOrCaption()), strings.ToLower(query)) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetMessages implements telegram.Client with positional alignment.
func (f *FakeClient) GetMessages(_ context.Context, entity telegram.Entity, ids []int) ([]*telegram.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.byRef[strconv.FormatInt(entity.ID, 10)]
	if !ok {
		return nil, errors.NewKind(errors.KindNotFound, "no chat for id %d", entity.ID)
	}
	out := make([]*telegram.RawMessage, len(ids))
	for i, id := range ids {
		for j := range chat.Messages {
			if chat.Messages[j].ID == id {
				m := chat.Messages[j]
				out[i] = &m
				break
			}
		}
	}
	return out, nil
}

// SendMessage implements telegram.Client.
func (f *FakeClient) SendMessage(_ context.Context, entity telegram.Entity, text string, opts telegram.SendOptions) (telegram.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.byRef[strconv.FormatInt(entity.ID, 10)]
	if !ok {
		return telegram.RawMessage{}, errors.NewKind(errors.KindNotFound, "no chat for id %d", entity.ID)
	}
	f.nextID++
	msg := telegram.RawMessage{
		ID:           f.nextID,
		Date:         time.Now().UTC(),
		Text:         text,
		SenderID:     f.me.ID,
		ReplyToMsgID: opts.ReplyToMsgID,
	}
	chat.Messages = append(chat.Messages, msg)
	return msg, nil
}

// EditMessage implements telegram.Client.
func (f *FakeClient) EditMessage(_ context.Context, entity telegram.Entity, messageID int, text string, _ string) (telegram.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.byRef[strconv.FormatInt(entity.ID, 10)]
	if !ok {
		return telegram.RawMessage{}, errors.NewKind(errors.KindNotFound, "no chat for id %d", entity.ID)
	}
	for i := range chat.Messages {
		if chat.Messages[i].ID == messageID {
			chat.Messages[i].Text = text
			chat.Messages[i].EditDate = time.Now().UTC()
			return chat.Messages[i], nil
		}
	}
	return telegram.RawMessage{}, errors.NewKind(errors.KindNotFound, "no message %d in chat %d", messageID, entity.ID)
}

// GlobalSearch implements telegram.Client across every registered chat.
func (f *FakeClient) GlobalSearch(_ context.Context, query string, minDate, maxDate time.Time, offsetID, limit int) ([]telegram.GlobalHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []telegram.GlobalHit
	for _, chat := range f.chats {
		for i := len(chat.Messages) - 1; i >= 0; i-- {
			m := chat.Messages[i]
			if offsetID > 0 && m.ID >= offsetID {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(m.TextOrCaption()), strings.ToLower(query)) {
				continue
			}
			if !minDate.IsZero() && m.Date.Before(minDate) {
				continue
			}
			if !maxDate.IsZero() && m.Date.After(maxDate) {
				continue
			}
			out = append(out, telegram.GlobalHit{Message: m, ChatRef: strconv.FormatInt(chat.Entity.ID, 10)})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// SearchCounters implements telegram.Client.
func (f *FakeClient) SearchCounters(_ context.Context, entity telegram.Entity) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.byRef[strconv.FormatInt(entity.ID, 10)]
	if !ok {
		return 0, errors.NewKind(errors.KindNotFound, "no chat for id %d", entity.ID)
	}
	return len(chat.Messages), nil
}

// SearchContacts implements telegram.Client with a case-insensitive
// substring match on username, names and title.
func (f *FakeClient) SearchContacts(_ context.Context, query string, limit int) ([]telegram.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	var out []telegram.Entity
	for _, c := range f.contacts {
		hay := strings.ToLower(strings.Join([]string{c.Username, c.FirstName, c.LastName, c.Title}, " "))
		if q == "" || strings.Contains(hay, q) {
			out = append(out, c)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// InvokeRaw implements telegram.Client against the registered methods.
func (f *FakeClient) InvokeRaw(_ context.Context, method string, params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	fn, ok := f.rawMethods[method]
	f.mu.Unlock()
	if !ok {
		return nil, errors.NewKind(errors.KindNotFound, "unknown RPC method %q", method)
	}
	return fn(params)
}

// Me implements telegram.Client.
func (f *FakeClient) Me(_ context.Context) (telegram.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, nil
}

// Dialogs implements telegram.Client.
func (f *FakeClient) Dialogs(_ context.Context, limit int) ([]telegram.Dialog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []telegram.Dialog
	for _, chat := range f.chats {
		name := chat.Entity.Title
		if name == "" {
			name = strings.TrimSpace(chat.Entity.FirstName + " " + chat.Entity.LastName)
		}
		out = append(out, telegram.Dialog{
			ID:   chat.Entity.ID,
			Name: name,
			Kind: chat.Entity.Kind,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Connector wraps a client factory into a telegram.Connector.
func Connector(newClient func(token string) *FakeClient) telegram.Connector {
	return func(_ context.Context, _ *config.Config, token string) (telegram.Client, error) {
		return newClient(token), nil
	}
}

// SampleClient returns a client seeded with a small public channel, a
// private group and a couple of contacts; used by --test-mode.
func SampleClient() *FakeClient {
	f := NewFakeClient()
	now := time.Now().UTC()
	f.AddChat(telegram.Entity{ID: 100123, Kind: telegram.EntityChannel, Title: "Announcements", Username: "announce"},
		telegram.RawMessage{ID: 1, Date: now.Add(-3 * time.Hour), Text: "welcome to the channel", SenderID: 1},
		telegram.RawMessage{ID: 2, Date: now.Add(-2 * time.Hour), Text: "release notes inside", SenderID: 1},
		telegram.RawMessage{ID: 3, Date: now.Add(-1 * time.Hour), Text: "maintenance window tonight", SenderID: 1},
	)
	f.AddChat(telegram.Entity{ID: 200456, Kind: telegram.EntityChat, Title: "Team"},
		telegram.RawMessage{ID: 10, Date: now.Add(-30 * time.Minute), Text: "standup at ten", SenderID: 1},
	)
	f.AddContact(telegram.Entity{ID: 42, Kind: telegram.EntityUser, FirstName: "Alice", Username: "alice"})
	f.AddContact(telegram.Entity{ID: 43, Kind: telegram.EntityUser, FirstName: "Bob", Username: "bob"})
	f.RegisterRawMethod("help.GetConfigRequest", func(map[string]any) (map[string]any, error) {
		return map[string]any{"_": "config", "test_mode": true}, nil
	})
	return f
}
