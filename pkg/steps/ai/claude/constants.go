package claude

// Role string constants used when building Claude Messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stop reasons reported by the Messages API.
const (
	StopReasonEndTurn      = "end_turn"
	StopReasonToolUse      = "tool_use"
	StopReasonMaxTokens    = "max_tokens"
	StopReasonStopSequence = "stop_sequence"
)
