package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ward/session"
)

// Store is the Postgres-backed implementation of session.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	roles, err := json.Marshal(sess.SpeakerRoles)
	if err != nil {
		return fmt.Errorf("marshal speaker roles: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions
			(id, clinician_id, patient_id, started_at, ended_at, status, audio_enabled, speaker_roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.ClinicianID, nullable(sess.PatientID),
		sess.StartedAt, sess.EndedAt, sess.Status, sess.AudioEnabled, roles,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	var (
		sess      session.Session
		patientID *string
		roles     []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, clinician_id, patient_id, started_at, ended_at, status, audio_enabled, speaker_roles
		FROM sessions WHERE id = $1`,
		sessionID,
	).Scan(
		&sess.ID, &sess.ClinicianID, &patientID, &sess.StartedAt,
		&sess.EndedAt, &sess.Status, &sess.AudioEnabled, &roles,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	if patientID != nil {
		sess.PatientID = *patientID
	}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &sess.SpeakerRoles); err != nil {
			return nil, fmt.Errorf("unmarshal speaker roles: %w", err)
		}
	}
	return &sess, nil
}

func (s *Store) UpdateSessionStatus(
	ctx context.Context,
	sessionID string,
	status session.Status,
	endedAt *time.Time,
) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = $2, ended_at = COALESCE($3, ended_at)
		WHERE id = $1`,
		sessionID, status, endedAt,
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *Store) AppendTranscriptLine(ctx context.Context, line *session.TranscriptLine) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_lines (id, session_id, speaker, text, ts, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		line.ID, line.SessionID, line.Speaker, line.Text, line.Timestamp, line.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert transcript line: %w", err)
	}
	return nil
}

func (s *Store) ListTranscriptLines(ctx context.Context, sessionID string) ([]session.TranscriptLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, speaker, text, ts, confidence
		FROM transcript_lines WHERE session_id = $1 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transcript lines: %w", err)
	}
	defer rows.Close()

	var lines []session.TranscriptLine
	for rows.Next() {
		var line session.TranscriptLine
		if err := rows.Scan(
			&line.ID, &line.SessionID, &line.Speaker,
			&line.Text, &line.Timestamp, &line.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan transcript line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) AppendSuggestion(ctx context.Context, sug *session.Suggestion) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO suggestions
			(id, session_id, content, triggered_at, category, source, urgency, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sug.ID, sug.SessionID, sug.Content, sug.TriggeredAt,
		nullable(sug.Category), sug.Source, nullable(sug.Urgency), sug.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

func (s *Store) ListSuggestions(ctx context.Context, sessionID string) ([]session.Suggestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, content, triggered_at, category, source, urgency, confidence
		FROM suggestions WHERE session_id = $1 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []session.Suggestion
	for rows.Next() {
		var sug session.Suggestion
		var category, urgency *string
		if err := rows.Scan(
			&sug.ID, &sug.SessionID, &sug.Content, &sug.TriggeredAt,
			&category, &sug.Source, &urgency, &sug.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if category != nil {
			sug.Category = *category
		}
		if urgency != nil {
			sug.Urgency = *urgency
		}
		suggestions = append(suggestions, sug)
	}
	return suggestions, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
