package telegram

import (
	"context"
	"strconv"
	"time"
)

// MediaKind names the media classes the content filter recognises.
type MediaKind string

const (
	MediaPhoto       MediaKind = "photo"
	MediaDocument    MediaKind = "document"
	MediaAudio       MediaKind = "audio"
	MediaVoice       MediaKind = "voice"
	MediaVideo       MediaKind = "video"
	MediaWebpage     MediaKind = "webpage"
	MediaGeo         MediaKind = "geo"
	MediaContact     MediaKind = "contact"
	MediaPoll        MediaKind = "poll"
	MediaDice        MediaKind = "dice"
	MediaVenue       MediaKind = "venue"
	MediaGame        MediaKind = "game"
	MediaInvoice     MediaKind = "invoice"
	MediaUnsupported MediaKind = "unsupported"
)

var recognisedMedia = map[MediaKind]bool{
	MediaPhoto: true, MediaDocument: true, MediaAudio: true, MediaVoice: true,
	MediaVideo: true, MediaWebpage: true, MediaGeo: true, MediaContact: true,
	MediaPoll: true, MediaDice: true, MediaVenue: true, MediaGame: true,
	MediaInvoice: true, MediaUnsupported: true,
}

// MediaInfo is the placeholder the server exposes instead of media payloads.
type MediaInfo struct {
	Kind            MediaKind `json:"type"`
	MimeType        string    `json:"mime_type,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	ApproxSizeBytes int64     `json:"approx_size_bytes,omitempty"`
}

// ForwardHeader describes where a forwarded message came from.
type ForwardHeader struct {
	FromID   int64     `json:"from_id,omitempty"`
	FromName string    `json:"from_name,omitempty"`
	Date     time.Time `json:"date,omitzero"`
}

// RawMessage is a platform message before formatting: the text/caption
// slots are kept separate, the sender is still an id and no link has been
// computed yet.
type RawMessage struct {
	ID           int
	Date         time.Time
	EditDate     time.Time
	Text         string
	Caption      string
	SenderID     int64
	ReplyToMsgID int
	Fwd          *ForwardHeader
	Media        *MediaInfo
}

// TextOrCaption returns the textual content of the message: the text slot
// when non-empty, the caption otherwise.
func (m RawMessage) TextOrCaption() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// HasContent reports whether the message has non-empty text or a recognised
// media kind. Messages failing this check are dropped by the search filters.
func (m RawMessage) HasContent() bool {
	if m.TextOrCaption() != "" {
		return true
	}
	return m.Media != nil && recognisedMedia[m.Media.Kind]
}

// Message is the wire-facing message record shared by the search and read
// tools. Text is null exactly when the message had neither text nor a
// caption; Media is present exactly when the message carries media.
type Message struct {
	ID            int            `json:"id"`
	Date          string         `json:"date"`
	Chat          map[string]any `json:"chat"`
	Text          *string        `json:"text"`
	Sender        map[string]any `json:"sender,omitempty"`
	ReplyToMsgID  int            `json:"reply_to_msg_id,omitempty"`
	Link          string         `json:"link,omitempty"`
	ForwardedFrom map[string]any `json:"forwarded_from,omitempty"`
	Media         *MediaInfo     `json:"media,omitempty"`
}

// DedupKey identifies a message across chats for merge deduplication.
type DedupKey struct {
	ChatID    int64
	MessageID int
}

// Key returns the message's deduplication key within its chat.
func (m Message) Key() DedupKey {
	var chatID int64
	if m.Chat != nil {
		if id, ok := m.Chat["id"].(int64); ok {
			chatID = id
		}
	}
	return DedupKey{ChatID: chatID, MessageID: m.ID}
}

// BuildMessage formats a raw message into the wire record, resolving the
// sender through the client and attaching the precomputed link.
func BuildMessage(ctx context.Context, client Client, raw RawMessage, chat Entity, link string) Message {
	msg := Message{
		ID:           raw.ID,
		Date:         raw.Date.UTC().Format(time.RFC3339),
		Chat:         chat.Dict(),
		Sender:       senderInfo(ctx, client, raw.SenderID),
		ReplyToMsgID: raw.ReplyToMsgID,
		Link:         link,
		Media:        raw.Media,
	}
	if text := raw.TextOrCaption(); text != "" {
		msg.Text = &text
	}
	if raw.Fwd != nil {
		msg.ForwardedFrom = forwardInfo(ctx, client, raw.Fwd)
	}
	return msg
}

// senderInfo resolves a sender id into an entity dictionary, degrading to
// an {id, error} pair when the sender cannot be resolved.
func senderInfo(ctx context.Context, client Client, senderID int64) map[string]any {
	if senderID == 0 {
		return nil
	}
	sender, err := client.ResolveEntity(ctx, strconv.FormatInt(senderID, 10))
	if err != nil {
		return map[string]any{"id": senderID, "error": "Failed to retrieve sender"}
	}
	if sender.Zero() {
		return map[string]any{"id": senderID, "error": "Sender not found"}
	}
	return sender.Dict()
}

// forwardInfo resolves a forward header into an entity dictionary when the
// origin id is known, or a name-only descriptor for hidden origins.
func forwardInfo(ctx context.Context, client Client, fwd *ForwardHeader) map[string]any {
	if fwd.FromID != 0 {
		origin, err := client.ResolveEntity(ctx, strconv.FormatInt(fwd.FromID, 10))
		if err == nil && !origin.Zero() {
			return origin.Dict()
		}
		return map[string]any{"id": fwd.FromID}
	}
	if fwd.FromName != "" {
		return map[string]any{"from_name": fwd.FromName}
	}
	return nil
}
