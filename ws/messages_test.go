package ws

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestParseInbound(t *testing.T) {
	frame, err := ParseInbound([]byte(
		`{"type":"send_transcript_line","session_id":"s1","speaker":"doctor","text":"BP is high"}`,
	))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if frame.Type != TypeSendTranscriptLine {
		t.Errorf("type = %q", frame.Type)
	}
	if frame.SessionID != "s1" || frame.Speaker != "doctor" || frame.Text != "BP is high" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestParseInboundRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"type":`},
		{"missing type", `{"session_id":"s1"}`},
		{"missing session", `{"type":"join_session"}`},
		{"blank session", `{"type":"join_session","session_id":"  "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseInbound([]byte(tc.raw)); err == nil {
				t.Errorf("accepted %s", tc.raw)
			}
		})
	}
}

func TestDecodeAudio(t *testing.T) {
	payload := []byte{0x1a, 0x45, 0xdf, 0xa3} // webm magic
	frame := InboundFrame{
		Type:      TypeStreamAudioChunk,
		SessionID: "s1",
		Audio:     base64.StdEncoding.EncodeToString(payload),
	}

	audio, err := DecodeAudio(frame)
	if err != nil {
		t.Fatalf("DecodeAudio: %v", err)
	}
	if string(audio) != string(payload) {
		t.Errorf("decoded %x, want %x", audio, payload)
	}
}

func TestDecodeAudioRejectsInvalidBase64(t *testing.T) {
	frame := InboundFrame{
		Type:      TypeStreamAudioChunk,
		SessionID: "s1",
		Audio:     "not!!!base64***",
	}
	_, err := DecodeAudio(frame)
	if err == nil {
		t.Fatal("accepted invalid base64")
	}
	if !strings.Contains(err.Error(), "base64") {
		t.Errorf("error %q does not name the encoding problem", err)
	}
}

func TestDecodeAudioRejectsMissingPayload(t *testing.T) {
	frame := InboundFrame{Type: TypeStreamAudioChunk, SessionID: "s1"}
	if _, err := DecodeAudio(frame); err == nil {
		t.Fatal("accepted frame without audio payload")
	}
}
