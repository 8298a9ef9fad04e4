package stt

import (
	"context"
	"fmt"
)

// Result is one transcribed fragment. A zero-value Result with empty Text
// means the provider heard silence; that is not an error.
type Result struct {
	Text       string
	Confidence float64
}

// ErrorCode classifies a transcription failure.
type ErrorCode string

const (
	// ErrCodeInvalidInput means the audio chunk was rejected before any
	// provider call was made.
	ErrCodeInvalidInput ErrorCode = "invalid_input"
	// ErrCodeProvider means the provider returned an error.
	ErrCodeProvider ErrorCode = "provider"
	// ErrCodeTimeout means the provider call exceeded its deadline.
	ErrCodeTimeout ErrorCode = "timeout"
)

// TranscribeError is the typed failure every provider problem maps to.
// Callers never see a raw provider error.
type TranscribeError struct {
	Code ErrorCode
	Err  error
}

func (e *TranscribeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transcribe: %s", e.Code)
	}
	return fmt.Sprintf("transcribe: %s: %v", e.Code, e.Err)
}

func (e *TranscribeError) Unwrap() error { return e.Err }

// Recoverable reports whether the same input could succeed on retry.
// Invalid input never will.
func (e *TranscribeError) Recoverable() bool {
	return e.Code != ErrCodeInvalidInput
}

// Transcriber converts raw audio bytes into a transcript fragment.
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID string, audio []byte) (Result, error)
}
