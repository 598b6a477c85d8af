package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var priorityEmoji = map[string]string{
	"high":   ":rotating_light:",
	"medium": ":warning:",
	"low":    ":information_source:",
}

// BuildNotificationMessage creates Block Kit blocks for a daemon
// notification (spec.md §4.4 failure semantics: Executor failures and
// escalations are surfaced via notification). priority selects the
// leading emoji; an unrecognized value falls back to a plain bullet.
func BuildNotificationMessage(title, body, priority, dashboardURL string) []goslack.Block {
	emoji := priorityEmoji[priority]
	if emoji == "" {
		emoji = ":speech_balloon:"
	}

	headerText := fmt.Sprintf("%s *%s*", emoji, title)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if body != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(body), false, false),
			nil, nil,
		))
	}

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View in Dashboard", false, false))
		btn.URL = dashboardURL
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
