package interview

import "encoding/base64"

// WebSocket close codes for the interview channel.
const (
	CloseInvalidToken  = 4001
	CloseMissingPrompt = 4002
	CloseInactivity    = 4003
)

// Frame types sent to the client.
const (
	FrameSpeakerChange = "speaker_change"
	FrameSentence      = "sentence"
	FrameSystem        = "system"
)

// Speakers for speaker_change frames.
const (
	SpeakerInterviewer = "interviewer"
	SpeakerUser        = "user"
)

// Frame is a server-to-client message on the interview channel.
type Frame struct {
	Type       string `json:"type"`
	Speaker    string `json:"speaker,omitempty"`
	ShowPrompt bool   `json:"showPrompt,omitempty"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Content    string `json:"content,omitempty"`
}

// SpeakerChangeFrame signals whose turn it is.
func SpeakerChangeFrame(speaker string, showPrompt bool) Frame {
	return Frame{Type: FrameSpeakerChange, Speaker: speaker, ShowPrompt: showPrompt}
}

// SentenceFrame pairs one interviewer sentence with its synthesized audio.
func SentenceFrame(text string, audio []byte) Frame {
	return Frame{
		Type:  FrameSentence,
		Text:  text,
		Audio: base64.StdEncoding.EncodeToString(audio),
	}
}

// SystemFrame carries an out-of-band notice such as the inactivity message.
func SystemFrame(content string) Frame {
	return Frame{Type: FrameSystem, Content: content}
}
