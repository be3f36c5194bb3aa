package telegram

import (
	"strconv"
	"strings"
)

// EntityKind tags the variant of an Entity. ChannelForbidden peers collapse
// into EntityChannel with Forbidden set.
type EntityKind string

const (
	EntityUser    EntityKind = "User"
	EntityChat    EntityKind = "Chat"
	EntityChannel EntityKind = "Channel"
)

// Chat-type filter values accepted by the search and contact tools.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
	ChatTypeChannel = "channel"
)

// Entity is the uniform representation of a platform peer: a user, a basic
// group or a channel/supergroup. IDs are stored bare and positive; the
// -100 marker exists only in canonical identifiers and links.
type Entity struct {
	ID        int64
	Kind      EntityKind
	Title     string
	Username  string
	FirstName string
	LastName  string
	Forbidden bool
}

// Zero reports whether e carries no peer at all.
func (e Entity) Zero() bool {
	return e.ID == 0 && e.Kind == ""
}

// Dict returns the uniform dictionary shape shared by every tool result.
// Unset string fields are present with null values, matching the wire
// contract of the original API.
func (e Entity) Dict() map[string]any {
	d := map[string]any{
		"id":         e.ID,
		"type":       string(e.Kind),
		"title":      nil,
		"username":   nil,
		"first_name": nil,
		"last_name":  nil,
	}
	if e.Title != "" {
		d["title"] = e.Title
	}
	if e.Username != "" {
		d["username"] = e.Username
	}
	if e.FirstName != "" {
		d["first_name"] = e.FirstName
	}
	if e.LastName != "" {
		d["last_name"] = e.LastName
	}
	return d
}

// CanonicalID is the string identifier used for deep-link construction:
// @username when known, -100<id> for channels, the bare id otherwise.
func (e Entity) CanonicalID() string {
	if e.Username != "" {
		return "@" + e.Username
	}
	if e.Kind == EntityChannel {
		return "-100" + strconv.FormatInt(e.ID, 10)
	}
	return strconv.FormatInt(e.ID, 10)
}

// MatchesChatType reports whether the entity satisfies a chat-type filter.
// An empty filter matches everything.
func (e Entity) MatchesChatType(chatType string) bool {
	switch chatType {
	case "":
		return true
	case ChatTypePrivate:
		return e.Kind == EntityUser
	case ChatTypeGroup:
		return e.Kind == EntityChat
	case ChatTypeChannel:
		return e.Kind == EntityChannel
	default:
		return false
	}
}

// ValidChatType reports whether chatType is empty or one of the recognised
// filter values.
func ValidChatType(chatType string) bool {
	switch chatType {
	case "", ChatTypePrivate, ChatTypeGroup, ChatTypeChannel:
		return true
	}
	return false
}

// NormalizeChatRef rewrites the chat references callers send into the form
// ResolveEntity expects: numeric ids lose their -100 (or bare minus)
// prefix, usernames pass through unchanged.
func NormalizeChatRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if _, err := strconv.ParseInt(ref, 10, 64); err != nil {
		return ref
	}
	if strings.HasPrefix(ref, "-100") {
		return ref[4:]
	}
	if strings.HasPrefix(ref, "-") {
		return ref[1:]
	}
	return ref
}

// NormalizeSendRef prepends @ to bare usernames so send targets resolve the
// same way the original server resolved them.
func NormalizeSendRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "@") {
		return ref
	}
	if _, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return ref
	}
	return "@" + ref
}
