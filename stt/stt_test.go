package stt

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestTranscribeErrorClassification(t *testing.T) {
	cases := []struct {
		code        ErrorCode
		recoverable bool
	}{
		{ErrCodeInvalidInput, false},
		{ErrCodeProvider, true},
		{ErrCodeTimeout, true},
	}
	for _, tc := range cases {
		err := &TranscribeError{Code: tc.code, Err: errors.New("boom")}
		if err.Recoverable() != tc.recoverable {
			t.Errorf("%s: recoverable = %v, want %v", tc.code, err.Recoverable(), tc.recoverable)
		}
	}
}

func TestTranscribeErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TranscribeError{Code: ErrCodeProvider, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("TranscribeError does not unwrap to its cause")
	}
}

func TestDeepgramRequiresToken(t *testing.T) {
	if _, err := NewDeepgramClient("", log.New(io.Discard)); err == nil {
		t.Fatal("accepted empty API key")
	}
}

func TestEmptyChunkFailsFastWithoutProviderCall(t *testing.T) {
	client, err := NewDeepgramClient("test-key", log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewDeepgramClient: %v", err)
	}

	_, err = client.Transcribe(context.Background(), "s1", nil)
	var terr *TranscribeError
	if !errors.As(err, &terr) {
		t.Fatalf("got %T, want *TranscribeError", err)
	}
	if terr.Code != ErrCodeInvalidInput {
		t.Errorf("code = %s, want invalid_input", terr.Code)
	}
	if terr.Recoverable() {
		t.Error("invalid input reported as recoverable")
	}
}
