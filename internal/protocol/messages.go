package protocol

import (
	"time"

	"github.com/loqalabs/loqa-present/internal/slide"
)

// TTSRequest asks the speech service to read one utterance.
type TTSRequest struct {
	SessionID   string    `json:"session_id"`
	UtteranceID string    `json:"utterance_id"`
	Text        string    `json:"text"`
	Voice       string    `json:"voice,omitempty"`
	Target      string    `json:"target,omitempty"`
	TraceID     string    `json:"trace_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TTSCancel withdraws an utterance that is still being synthesized.
type TTSCancel struct {
	SessionID   string `json:"session_id"`
	UtteranceID string `json:"utterance_id"`
}

// AudioChunk carries synthesized PCM for an utterance.
type AudioChunk struct {
	SessionID   string `json:"session_id"`
	UtteranceID string `json:"utterance_id"`
	Target      string `json:"target,omitempty"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	Sequence    int    `json:"sequence"`
	PCM         []byte `json:"pcm"`
	Final       bool   `json:"final"`
}

// TTSStatus reports the end of an utterance. Completed is false when
// synthesis failed or was cancelled.
type TTSStatus struct {
	SessionID   string    `json:"session_id"`
	UtteranceID string    `json:"utterance_id"`
	Target      string    `json:"target,omitempty"`
	Completed   bool      `json:"completed"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// PlayerState is broadcast whenever a presentation changes state.
type PlayerState struct {
	SessionID string    `json:"session_id"`
	Current   int       `json:"current"`
	Outgoing  int       `json:"outgoing"`
	Playing   bool      `json:"playing"`
	Finished  bool      `json:"finished"`
	Phase     string    `json:"phase"`
	Count     int       `json:"count"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// ScriptRequest asks for a slide script; it is sent with request/reply.
type ScriptRequest struct {
	RequestID string    `json:"request_id"`
	Content   string    `json:"content"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScriptReply answers a ScriptRequest.
type ScriptReply struct {
	RequestID string        `json:"request_id"`
	Slides    []slide.Slide `json:"slides,omitempty"`
	Error     string        `json:"error,omitempty"`
}

const (
	SubjectTTSRequest        = "tts.request"
	SubjectTTSCancel         = "tts.cancel"
	SubjectTTSAudio          = "tts.audio"
	SubjectTTSDone           = "tts.done"
	SubjectPlayerStatePrefix = "player.state"
	SubjectScriptRequest     = "script.request"
)

// PlayerStateSubject is the subject a session publishes its state on.
func PlayerStateSubject(sessionID string) string {
	return SubjectPlayerStatePrefix + "." + sessionID
}
