package slack

import (
	"strings"
	"testing"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNotificationMessage_Low(t *testing.T) {
	blocks := BuildNotificationMessage("disk cleanup queued", "truncate /var/log/big.log", "low", "https://dash.example.com")

	require.Len(t, blocks, 3)
	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":information_source:")
	assert.Contains(t, header.Text.Text, "disk cleanup queued")

	body := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, body.Text.Text, "truncate /var/log/big.log")

	action := blocks[2].(*goslack.ActionBlock)
	btn := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	assert.Equal(t, "https://dash.example.com", btn.URL)
}

func TestBuildNotificationMessage_High(t *testing.T) {
	blocks := BuildNotificationMessage("protected service rejected", "nginx restart blocked", "high", "")

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":rotating_light:")
	assert.Len(t, blocks, 2, "no dashboard button when dashboardURL is empty")
}

func TestBuildNotificationMessage_UnknownPriority(t *testing.T) {
	blocks := BuildNotificationMessage("heads up", "", "", "")

	require.Len(t, blocks, 1, "no body block when body is empty")
	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":speech_balloon:")
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("multi-byte runes not split", func(t *testing.T) {
		text := strings.Repeat("🔥", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.Contains(t, result, "truncated")
		assert.True(t, utf8.ValidString(result), "result should be valid UTF-8")
		prefix := strings.Split(result, "\n\n_...")[0]
		assert.Equal(t, maxBlockTextLength, utf8.RuneCountInString(prefix))
	})
}
