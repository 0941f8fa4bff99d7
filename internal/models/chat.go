package models

// Role tags who produced a conversation turn. The values match the role
// strings the Gemini API expects in chat history.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single entry of a session transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func ModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Text: text}
}

// ChatRequest is one unit of work for the relay. Exempt is set by the
// transport when the request originates from a loopback address.
type ChatRequest struct {
	Text      string
	UserID    string
	SessionID string
	Exempt    bool
}

type ChatReply struct {
	Text string `json:"reply"`
}
