package interview

import "time"

// HistoryLimit bounds the conversation history kept in a ContextRecord.
const HistoryLimit = 10

// ContextRecord is the store-backed snapshot of an interview: the
// generated prompt, the questions already asked and a sliding window of
// recent conversation. It lives independently of in-memory Session state
// and expires with its store key.
type ContextRecord struct {
	Prompt              string    `json:"prompt"`
	QuestionsAsked      []string  `json:"questions_asked"`
	ConversationHistory []Message `json:"conversation_history"`
	LastInteraction     time.Time `json:"last_interaction"`
}

// AppendHistory adds a message, trimming to the most recent HistoryLimit
// entries.
func (c *ContextRecord) AppendHistory(msg Message) {
	c.ConversationHistory = append(c.ConversationHistory, msg)
	if len(c.ConversationHistory) > HistoryLimit {
		c.ConversationHistory = c.ConversationHistory[len(c.ConversationHistory)-HistoryLimit:]
	}
	c.LastInteraction = time.Now().UTC()
}

// AddQuestion records a question if it has not been asked before.
// Returns true when the question was new.
func (c *ContextRecord) AddQuestion(question string) bool {
	for _, q := range c.QuestionsAsked {
		if q == question {
			return false
		}
	}
	c.QuestionsAsked = append(c.QuestionsAsked, question)
	return true
}

// PromptRecord is the stored output of document processing.
type PromptRecord struct {
	Prompt         string   `json:"prompt"`
	CreatedAt      string   `json:"created_at"`
	QuestionsAsked []string `json:"questions_asked"`
}
