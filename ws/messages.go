package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound frame types on the real-time channel.
const (
	TypeJoinSession        = "join_session"
	TypeLeaveSession       = "leave_session"
	TypeSendTranscriptLine = "send_transcript_line"
	TypeStreamAudioChunk   = "stream_audio_chunk"
	TypeRequestSuggestions = "request_suggestions"
	TypePauseSession       = "pause_session"
	TypeResumeSession      = "resume_session"
	TypeEndSession         = "end_session"
	TypeCancelSession      = "cancel_session"
)

// InboundFrame is one client request addressed at a session.
type InboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text,omitempty"`
	Audio     string `json:"audio,omitempty"` // base64 compressed container
}

// OutboundFrame is one server event pushed to observers.
type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ParseInbound decodes and validates one raw client frame.
func ParseInbound(raw []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("malformed frame: %w", err)
	}
	if frame.Type == "" {
		return InboundFrame{}, fmt.Errorf("frame missing type")
	}
	if strings.TrimSpace(frame.SessionID) == "" {
		return InboundFrame{}, fmt.Errorf("frame missing session_id")
	}
	return frame, nil
}

// DecodeAudio turns the frame's base64 payload into raw container bytes.
func DecodeAudio(frame InboundFrame) ([]byte, error) {
	if frame.Audio == "" {
		return nil, fmt.Errorf("frame missing audio")
	}
	audio, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return audio, nil
}
