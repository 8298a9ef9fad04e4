package session

import "errors"

var (
	ErrClinicianRequired = errors.New("clinician id is required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotActive  = errors.New("session not active")
	ErrSessionTerminal   = errors.New("session already ended")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrEmptyText         = errors.New("empty transcript text")
	ErrEmptyAudio        = errors.New("empty audio chunk")
	ErrNotOwner          = errors.New("only the owning clinician may change session state")
)
