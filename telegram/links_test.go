package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLinksPublicChat(t *testing.T) {
	set := GenerateLinks("@golang", []int{10, 11}, LinkOptions{})
	assert.Equal(t, "https://t.me/golang", set.PublicChatLink)
	assert.Empty(t, set.PrivateChatLink)
	assert.Equal(t, []string{
		"https://t.me/golang/10",
		"https://t.me/golang/11",
	}, set.MessageLinks)
	assert.Equal(t, LinkNote, set.Note)
}

func TestGenerateLinksPrivateChannel(t *testing.T) {
	set := GenerateLinks("-1001234567", []int{123}, LinkOptions{})
	assert.Empty(t, set.PublicChatLink)
	assert.Equal(t, "https://t.me/c/1234567", set.PrivateChatLink)
	assert.Equal(t, []string{"https://t.me/c/1234567/123"}, set.MessageLinks)
}

func TestGenerateLinksBareNumericID(t *testing.T) {
	set := GenerateLinks("987654", []int{5}, LinkOptions{})
	assert.Equal(t, "https://t.me/c/987654", set.PrivateChatLink)
	assert.Equal(t, []string{"https://t.me/c/987654/5"}, set.MessageLinks)
}

func TestGenerateLinksThreadAndParams(t *testing.T) {
	set := GenerateLinks("@golang", []int{7}, LinkOptions{ThreadID: 3, CommentID: 9, MediaTimestamp: 42})
	assert.Equal(t, []string{"https://t.me/golang/3/7?thread=3&comment=9&t=42"}, set.MessageLinks)
}

func TestGenerateLinksUnlinkableRef(t *testing.T) {
	set := GenerateLinks("not a chat", []int{1}, LinkOptions{})
	assert.Empty(t, set.PublicChatLink)
	assert.Empty(t, set.PrivateChatLink)
	assert.Empty(t, set.MessageLinks)
}

func TestMessageLink(t *testing.T) {
	assert.Equal(t, "https://t.me/golang/12", MessageLink("@golang", 12))
	assert.Equal(t, "https://t.me/c/555/12", MessageLink("-100555", 12))
	assert.Empty(t, MessageLink("bogus ref", 12))
}
