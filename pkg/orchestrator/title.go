package orchestrator

import (
	"strings"

	"longevity-chat-be/internal/constant"
)

// DeriveTitle builds a session title from the first user message: at most
// ten words and 64 characters, with an ellipsis marker when truncated.
// Blank input falls back to the default title.
func DeriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return constant.DefaultSessionTitle
	}

	truncated := false
	if len(words) > constant.SessionTitleMaxWords {
		words = words[:constant.SessionTitleMaxWords]
		truncated = true
	}

	title := strings.Join(words, " ")
	if runes := []rune(title); len(runes) > constant.SessionTitleMaxChars {
		title = strings.TrimRight(string(runes[:constant.SessionTitleMaxChars]), " ")
		truncated = true
	}

	if truncated {
		title += "…"
	}
	return title
}
