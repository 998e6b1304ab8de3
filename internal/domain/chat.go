package domain

import "fmt"

// Role identifies the author of a chat turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid returns true if the role is a valid value
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// ChatTurn is one message of a conversation.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ValidateTurns checks that every turn carries a known role.
func ValidateTurns(turns []ChatTurn) error {
	for i, t := range turns {
		if !t.Role.IsValid() {
			return Wrap(ErrInvalidRole, fmt.Errorf("message %d: %q", i, t.Role))
		}
	}
	return nil
}

// Source is a retrieval hit as exposed on a chat response.
type Source struct {
	Source  string  `json:"source"`
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// ChatResponse is the result of one pass through the chat pipeline.
type ChatResponse struct {
	Answer     string      `json:"answer"`
	Intent     Namespace   `json:"intent"`
	Source     string      `json:"source,omitempty"`
	Sources    []Source    `json:"sources,omitempty"`
	Confidence float64     `json:"confidence"`
	Degraded   bool        `json:"degraded,omitempty"`
	ErrorKind  FailureKind `json:"error_kind,omitempty"`
}
