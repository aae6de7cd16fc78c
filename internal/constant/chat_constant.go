package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// DefaultSessionTitle is assigned on creation and replaced once, from
	// the first user message of the session.
	DefaultSessionTitle = "New Session"

	SessionTitleMaxWords = 10
	SessionTitleMaxChars = 64
)
