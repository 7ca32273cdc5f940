package interview

// Roles used in transcripts and context records. The ai layer maps these
// onto the model API's user/assistant roles.
const (
	RoleSystem      = "system"
	RoleCandidate   = "candidate"
	RoleInterviewer = "interviewer"
)

// Message is a single turn entry in a session transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
