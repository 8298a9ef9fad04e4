package stt

import (
	"bytes"
	"context"
	"errors"

	"github.com/charmbracelet/log"
	prerecorded "github.com/deepgram/deepgram-go-sdk/pkg/api/prerecorded/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/prerecorded"
)

type DeepgramClient struct {
	api    *prerecorded.Client
	logger *log.Logger
}

func NewDeepgramClient(token string, logger *log.Logger) (*DeepgramClient, error) {
	if token == "" {
		return nil, errors.New("deepgram api key is required")
	}
	dg := client.New(token, &interfaces.ClientOptions{})
	return &DeepgramClient{api: prerecorded.New(dg), logger: logger}, nil
}

// Transcribe sends one audio chunk to Deepgram's prerecorded endpoint.
// Chunks arrive as compressed containers (Opus-in-WebM by default) and are
// passed through undecoded; the provider handles container parsing.
func (c *DeepgramClient) Transcribe(
	ctx context.Context,
	sessionID string,
	audio []byte,
) (Result, error) {
	if len(audio) == 0 {
		return Result{}, &TranscribeError{
			Code: ErrCodeInvalidInput,
			Err:  errors.New("empty audio chunk"),
		}
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       "nova-2",
		Language:    "en-US",
		Punctuate:   true,
		SmartFormat: true,
	}

	resp, err := c.api.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		code := ErrCodeProvider
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			code = ErrCodeTimeout
		}
		c.logger.Error("transcription failed", "session", sessionID, "error", err)
		return Result{}, &TranscribeError{Code: code, Err: err}
	}

	channels := resp.Results.Channels
	if len(channels) == 0 || len(channels[0].Alternatives) == 0 {
		return Result{}, nil
	}

	alt := channels[0].Alternatives[0]
	c.logger.Info("hear",
		"session", sessionID,
		"txt", alt.Transcript,
		"confidence", alt.Confidence,
	)

	return Result{Text: alt.Transcript, Confidence: alt.Confidence}, nil
}
