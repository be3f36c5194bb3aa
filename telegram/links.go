package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// LinkNote is attached to every generated link set.
const LinkNote = "Private chat links only work for chat members. Public links work for anyone."

// LinkOptions are the optional deep-link parameters. Zero values are omitted.
type LinkOptions struct {
	ThreadID       int
	CommentID      int
	MediaTimestamp int
}

// LinkSet is the result of link generation. Exactly one of PublicChatLink
// and PrivateChatLink is set, depending on whether the chat has a username.
type LinkSet struct {
	PublicChatLink  string   `json:"public_chat_link,omitempty"`
	PrivateChatLink string   `json:"private_chat_link,omitempty"`
	MessageLinks    []string `json:"message_links,omitempty"`
	Note            string   `json:"note"`
}

// GenerateLinks builds t.me deep links from a canonical chat identifier
// (see Entity.CanonicalID) and a list of message ids.
//
// Public chats (identifier @username) produce
// t.me/<username>[/<thread_id>]/<msg_id>[?...]; private chats produce
// t.me/c/<channel_id>[/<thread_id>]/<msg_id>[?...] with any leading -100
// stripped from the id.
func GenerateLinks(canonicalID string, messageIDs []int, opts LinkOptions) LinkSet {
	result := LinkSet{Note: LinkNote}
	query := queryString(opts)

	if strings.HasPrefix(canonicalID, "@") {
		username := strings.TrimPrefix(canonicalID, "@")
		result.PublicChatLink = "https://t.me/" + username
		for _, msgID := range messageIDs {
			result.MessageLinks = append(result.MessageLinks, messageLink(username, msgID, opts.ThreadID, query))
		}
		return result
	}

	if isNumericRef(canonicalID) {
		channelID := strings.TrimPrefix(canonicalID, "-100")
		result.PrivateChatLink = "https://t.me/c/" + channelID
		for _, msgID := range messageIDs {
			result.MessageLinks = append(result.MessageLinks, messageLink("c/"+channelID, msgID, opts.ThreadID, query))
		}
	}

	return result
}

func messageLink(base string, msgID, threadID int, query string) string {
	if threadID != 0 {
		return fmt.Sprintf("https://t.me/%s/%d/%d%s", base, threadID, msgID, query)
	}
	return fmt.Sprintf("https://t.me/%s/%d%s", base, msgID, query)
}

func queryString(opts LinkOptions) string {
	var params []string
	if opts.ThreadID != 0 {
		params = append(params, fmt.Sprintf("thread=%d", opts.ThreadID))
	}
	if opts.CommentID != 0 {
		params = append(params, fmt.Sprintf("comment=%d", opts.CommentID))
	}
	if opts.MediaTimestamp != 0 {
		params = append(params, fmt.Sprintf("t=%d", opts.MediaTimestamp))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

func isNumericRef(ref string) bool {
	if ref == "" {
		return false
	}
	if strings.HasPrefix(ref, "-100") {
		ref = ref[4:]
	}
	_, err := strconv.ParseUint(ref, 10, 64)
	return err == nil
}

// MessageLink returns the single deep link for one message, or "" when the
// identifier supports no links.
func MessageLink(canonicalID string, messageID int) string {
	set := GenerateLinks(canonicalID, []int{messageID}, LinkOptions{})
	if len(set.MessageLinks) == 0 {
		return ""
	}
	return set.MessageLinks[0]
}
