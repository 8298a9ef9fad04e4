package session

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a clinical session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Role identifies who is speaking on a transcript line.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleUnknown Role = "unknown"
)

// Session is one clinician-patient encounter.
type Session struct {
	ID           string          `json:"id"`
	ClinicianID  string          `json:"clinician_id"`
	PatientID    string          `json:"patient_id,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	Status       Status          `json:"status"`
	AudioEnabled bool            `json:"audio_enabled"`
	SpeakerRoles map[string]Role `json:"speaker_roles,omitempty"`
}

// SeedRole picks the initial speaker for a session with no turn history,
// taken from the configured speaker map when one exists. Clinicians open
// most encounters, so the fallback is the doctor.
func (s *Session) SeedRole() Role {
	if len(s.SpeakerRoles) == 0 {
		return RoleDoctor
	}
	labels := make([]string, 0, len(s.SpeakerRoles))
	for label := range s.SpeakerRoles {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return s.SpeakerRoles[labels[0]]
}

// TranscriptLine is one attributed utterance. Append-only once persisted.
type TranscriptLine struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Speaker    Role      `json:"speaker"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Source records what caused a suggestion to be generated.
type Source string

const (
	SourceBatch    Source = "batch"
	SourceOnDemand Source = "on_demand"
)

// Suggestion is one AI-generated prompt for the clinician.
type Suggestion struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Content     string    `json:"content"`
	TriggeredAt time.Time `json:"triggered_at"`
	Category    string    `json:"category,omitempty"`
	Source      Source    `json:"source"`
	Urgency     string    `json:"urgency,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
}

// Outbound event names on the real-time channel.
const (
	EventSessionJoined        = "session_joined"
	EventSessionLeft          = "session_left"
	EventTranscriptLineAdded  = "transcript_line_added"
	EventSuggestionAdded      = "suggestion_added"
	EventSessionStatusChanged = "session_status_changed"
	EventSttError             = "stt_error"
	EventError                = "error"
)
