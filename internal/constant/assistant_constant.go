package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// Content of the assistant turn while generation is still running.
	AssistantPlaceholderMessage = "..."

	// User-visible message when a turn fails.
	GenericErrorMessage = "An error occurred while processing your request."

	// Session title derived from the first query.
	SessionTitleMaxChars = 30
	SessionTitleSuffix   = "..."

	// Conversation turns sent to the model per request.
	MaxHistoryMessages = 10
)
