package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"ward/etc"
	"ward/hub"
	"ward/stt"
)

// Store is the durable record of sessions, transcript lines, and suggestions.
// Lines and suggestions are append-only; a record that fails to append is
// never broadcast.
type Store interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status Status, endedAt *time.Time) error
	AppendTranscriptLine(ctx context.Context, line *TranscriptLine) error
	ListTranscriptLines(ctx context.Context, sessionID string) ([]TranscriptLine, error)
	AppendSuggestion(ctx context.Context, sug *Suggestion) error
	ListSuggestions(ctx context.Context, sessionID string) ([]Suggestion, error)
}

// Suggester generates clinical suggestions from a transcript window.
type Suggester interface {
	GenerateSuggestions(ctx context.Context, sess *Session, window []TranscriptLine, source Source) ([]Suggestion, error)
}

// Broadcaster is the group-membership and fan-out surface the orchestrator
// emits through.
type Broadcaster interface {
	Join(c hub.Conn, sessionID string)
	Leave(c hub.Conn, sessionID string) bool
	RemoveConn(c hub.Conn) []string
	Broadcast(sessionID, event string, payload any)
}

// Config holds the engine tunables. Thresholds are deliberately
// configuration, pending empirical calibration against real encounters.
type Config struct {
	BatchThreshold    int
	BatchInterval     time.Duration
	SilenceGap        time.Duration
	TurnHistory       int
	TranscribeTimeout time.Duration
	SuggestTimeout    time.Duration
	OnDemandWindow    int
}

func DefaultConfig() Config {
	return Config{
		BatchThreshold:    5,
		BatchInterval:     45 * time.Second,
		SilenceGap:        2 * time.Second,
		TurnHistory:       16,
		TranscribeTimeout: 15 * time.Second,
		SuggestTimeout:    30 * time.Second,
		OnDemandWindow:    20,
	}
}

// Orchestrator ties the session engine together: it receives inbound events,
// runs the transcription and inference pipeline, appends to the durable
// store, and fans results out to observers.
type Orchestrator struct {
	store       Store
	hub         Broadcaster
	transcriber stt.Transcriber
	suggester   Suggester
	states      *StateStore
	policy      *TriggerPolicy
	speakers    *SpeakerEngine
	cfg         Config
	clock       etc.Clock
	log         *log.Logger

	tasks sync.WaitGroup
}

func NewOrchestrator(
	store Store,
	broadcaster Broadcaster,
	transcriber stt.Transcriber,
	suggester Suggester,
	cfg Config,
	logger *log.Logger,
) *Orchestrator {
	return NewOrchestratorWithClock(store, broadcaster, transcriber, suggester, cfg, logger, etc.Clock{})
}

func NewOrchestratorWithClock(
	store Store,
	broadcaster Broadcaster,
	transcriber stt.Transcriber,
	suggester Suggester,
	cfg Config,
	logger *log.Logger,
	clock etc.Clock,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		hub:         broadcaster,
		transcriber: transcriber,
		suggester:   suggester,
		states:      NewStateStore(),
		policy:      &TriggerPolicy{Threshold: cfg.BatchThreshold, Interval: cfg.BatchInterval, Clock: clock},
		speakers:    &SpeakerEngine{SilenceGap: cfg.SilenceGap, Clock: clock},
		cfg:         cfg,
		clock:       clock,
		log:         logger,
	}
}

// Close waits for in-flight suggestion tasks to drain.
func (o *Orchestrator) Close() {
	o.tasks.Wait()
}

// StartSession creates an encounter and registers its runtime state.
func (o *Orchestrator) StartSession(
	ctx context.Context,
	clinicianID, patientID string,
	audioEnabled bool,
	speakerRoles map[string]Role,
) (*Session, error) {
	if clinicianID == "" {
		return nil, ErrClinicianRequired
	}
	sess := &Session{
		ID:           etc.NewFreshID(),
		ClinicianID:  clinicianID,
		PatientID:    patientID,
		StartedAt:    o.clock.Now(),
		Status:       StatusActive,
		AudioEnabled: audioEnabled,
		SpeakerRoles: speakerRoles,
	}
	if err := o.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	o.states.GetOrCreate(sess, o.cfg.TurnHistory, o.clock.Now())
	o.log.Info("session started", "session", sess.ID, "clinician", clinicianID)
	return sess, nil
}

// ensureState returns the runtime cell for sessionID, loading the session
// record on first activity. Terminal sessions get a transient cell that is
// never registered: the registry only holds live sessions, so an operation
// arriving after the terminal transition cannot resurrect an entry.
func (o *Orchestrator) ensureState(ctx context.Context, sessionID string) (*RuntimeState, error) {
	if st, ok := o.states.Get(sessionID); ok {
		return st, nil
	}
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.Status.Terminal() {
		return newRuntimeState(sess, o.cfg.TurnHistory, o.clock.Now()), nil
	}
	return o.states.GetOrCreate(sess, o.cfg.TurnHistory, o.clock.Now()), nil
}

// Join subscribes conn to the session's events. Idempotent.
func (o *Orchestrator) Join(ctx context.Context, conn hub.Conn, sessionID string) error {
	st, err := o.ensureState(ctx, sessionID)
	if err != nil {
		return err
	}
	o.hub.Join(conn, sessionID)
	o.log.Info("joined", "session", sessionID, "conn", conn.ID())
	conn.Send(EventSessionJoined, map[string]any{
		"session_id": sessionID,
		"status":     st.Status(),
	})
	return nil
}

// Disconnect removes conn from every session group it belongs to. Cleanup
// only: in-flight transcription and suggestion work started by this
// connection keeps running for the remaining observers.
func (o *Orchestrator) Disconnect(conn hub.Conn) {
	left := o.hub.RemoveConn(conn)
	if len(left) > 0 {
		o.log.Info("connection cleaned up", "conn", conn.ID(), "sessions", len(left))
	}
}

// Leave unsubscribes conn. Leaving a session never joined is a no-op.
func (o *Orchestrator) Leave(conn hub.Conn, sessionID string) {
	if !o.hub.Leave(conn, sessionID) {
		return
	}
	conn.Send(EventSessionLeft, map[string]any{"session_id": sessionID})
}

// SubmitManualText appends a typed transcript line. The speaker is supplied
// by the client, not inferred.
func (o *Orchestrator) SubmitManualText(
	ctx context.Context,
	sessionID string,
	speaker Role,
	text string,
) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if speaker == "" {
		speaker = RoleUnknown
	}

	st, err := o.ensureState(ctx, sessionID)
	if err != nil {
		return err
	}

	st.Lock()
	defer st.Unlock()

	if st.Status() != StatusActive {
		return fmt.Errorf("%w: %s", ErrSessionNotActive, st.Status())
	}
	return o.acceptLine(ctx, st, speaker, text, 0)
}

// SubmitAudioChunk transcribes one audio chunk and, when it carries speech,
// appends the resulting line. Provider failures surface as a non-fatal
// stt_error to the submitting connection only; the connection stays usable.
func (o *Orchestrator) SubmitAudioChunk(
	ctx context.Context,
	conn hub.Conn,
	sessionID string,
	audio []byte,
) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}

	st, err := o.ensureState(ctx, sessionID)
	if err != nil {
		return err
	}
	if st.Status() != StatusActive {
		return fmt.Errorf("%w: %s", ErrSessionNotActive, st.Status())
	}

	// Provider call runs outside the pipeline lock so a slow transcription
	// never stalls other events on this session.
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TranscribeTimeout)
	defer cancel()
	res, err := o.transcriber.Transcribe(tctx, sessionID, audio)
	if err != nil {
		o.log.Warn("stt failure", "session", sessionID, "error", err)
		if conn != nil {
			conn.Send(EventSttError, map[string]any{
				"session_id": sessionID,
				"message":    err.Error(),
			})
		}
		return nil
	}
	if strings.TrimSpace(res.Text) == "" {
		// Silence. Nothing was said; nothing to append.
		return nil
	}

	st.Lock()
	defer st.Unlock()

	// Status may have changed while the provider call was in flight.
	if st.Status() != StatusActive {
		return fmt.Errorf("%w: %s", ErrSessionNotActive, st.Status())
	}

	speaker := o.speakers.Infer(st, st.Session())
	return o.acceptLine(ctx, st, speaker, strings.TrimSpace(res.Text), res.Confidence)
}

// acceptLine appends, broadcasts, and evaluates the batch trigger for one
// accepted line. Caller holds the session pipeline lock, which is what makes
// broadcast order match acceptance order and the trigger evaluation
// single-file per session.
func (o *Orchestrator) acceptLine(
	ctx context.Context,
	st *RuntimeState,
	speaker Role,
	text string,
	confidence float64,
) error {
	line := &TranscriptLine{
		ID:         etc.NewFreshID(),
		SessionID:  st.sessionID,
		Speaker:    speaker,
		Text:       text,
		Timestamp:  o.clock.Now(),
		Confidence: confidence,
	}
	if err := o.store.AppendTranscriptLine(ctx, line); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}

	st.RecordTurn(speaker, line.Timestamp)
	o.hub.Broadcast(st.sessionID, EventTranscriptLineAdded, line)

	decision, window := o.policy.OnLineAdded(st, *line)
	if decision == TriggerFireBatch {
		o.log.Info("batch trigger fired", "session", st.sessionID, "lines", len(window))
		o.spawnSuggestions(st.Session(), window, SourceBatch, nil)
	}
	return nil
}

// RequestSuggestionsNow bypasses the batch threshold. The automatic batch
// counter is left untouched.
func (o *Orchestrator) RequestSuggestionsNow(ctx context.Context, conn hub.Conn, sessionID string) error {
	st, err := o.ensureState(ctx, sessionID)
	if err != nil {
		return err
	}
	if st.Status() != StatusActive {
		return fmt.Errorf("%w: %s", ErrSessionNotActive, st.Status())
	}

	lines, err := o.store.ListTranscriptLines(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load transcript window: %w", err)
	}
	if n := o.cfg.OnDemandWindow; n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	o.spawnSuggestions(st.Session(), lines, SourceOnDemand, conn)
	return nil
}

// spawnSuggestions dispatches suggestion generation on a detached context.
// The originating connection disconnecting must not cancel the task; other
// observers still get the result.
func (o *Orchestrator) spawnSuggestions(
	sess *Session,
	window []TranscriptLine,
	source Source,
	initiator hub.Conn,
) {
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SuggestTimeout)
		defer cancel()

		suggestions, err := o.suggester.GenerateSuggestions(ctx, sess, window, source)
		if err != nil {
			o.log.Warn("suggestion generation failed",
				"session", sess.ID, "source", source, "error", err)
			if initiator != nil {
				initiator.Send(EventError, map[string]any{
					"session_id": sess.ID,
					"message":    "suggestion generation failed",
				})
			}
			return
		}

		// The suggester owns the slice it returned and may hand the same
		// backing array to concurrent tasks; stamp our copy, not theirs.
		stamped := make([]Suggestion, len(suggestions))
		copy(stamped, suggestions)
		for i := range stamped {
			sug := &stamped[i]
			if sug.ID == "" {
				sug.ID = etc.NewFreshID()
			}
			sug.SessionID = sess.ID
			sug.Source = source
			if sug.TriggeredAt.IsZero() {
				sug.TriggeredAt = o.clock.Now()
			}
			if err := o.store.AppendSuggestion(ctx, sug); err != nil {
				o.log.Error("append suggestion", "session", sess.ID, "error", err)
				continue
			}
			o.hub.Broadcast(sess.ID, EventSuggestionAdded, sug)
		}
	}()
}

// PauseSession moves an Active session to Paused. Owner only.
func (o *Orchestrator) PauseSession(ctx context.Context, actorID, sessionID string) error {
	return o.transition(ctx, actorID, sessionID, StatusPaused)
}

// ResumeSession moves a Paused session back to Active. Owner only.
func (o *Orchestrator) ResumeSession(ctx context.Context, actorID, sessionID string) error {
	return o.transition(ctx, actorID, sessionID, StatusActive)
}

// EndSession completes the session. Terminal; further transcript, audio, and
// suggestion operations are rejected.
func (o *Orchestrator) EndSession(ctx context.Context, actorID, sessionID string) error {
	return o.transition(ctx, actorID, sessionID, StatusCompleted)
}

// CancelSession abandons the session. Terminal.
func (o *Orchestrator) CancelSession(ctx context.Context, actorID, sessionID string) error {
	return o.transition(ctx, actorID, sessionID, StatusCancelled)
}

func (o *Orchestrator) transition(ctx context.Context, actorID, sessionID string, to Status) error {
	st, err := o.ensureState(ctx, sessionID)
	if err != nil {
		return err
	}
	sess := st.Session()
	if sess.ClinicianID != actorID {
		return ErrNotOwner
	}

	st.Lock()
	defer st.Unlock()

	from := st.Status()
	if from.Terminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, from)
	}
	if !validTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var endedAt *time.Time
	if to.Terminal() {
		now := o.clock.Now()
		endedAt = &now
	}
	if err := o.store.UpdateSessionStatus(ctx, sessionID, to, endedAt); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}

	st.SetStatus(to)
	o.hub.Broadcast(sessionID, EventSessionStatusChanged, map[string]any{
		"session_id": sessionID,
		"status":     to,
	})
	o.log.Info("session transition", "session", sessionID, "from", from, "to", to)

	if to.Terminal() {
		o.states.Evict(sessionID)
	}
	return nil
}

func validTransition(from, to Status) bool {
	switch to {
	case StatusPaused:
		return from == StatusActive
	case StatusActive:
		return from == StatusPaused
	case StatusCompleted:
		return from == StatusActive
	case StatusCancelled:
		return from == StatusActive || from == StatusPaused
	default:
		return false
	}
}
