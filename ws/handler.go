package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"ward/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token validation happens upstream; the engine trusts the user param.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades websocket connections and dispatches their frames into
// the orchestrator.
type Handler struct {
	orch   *session.Orchestrator
	logger *log.Logger
}

func NewHandler(orch *session.Orchestrator, logger *log.Logger) *Handler {
	return &Handler{orch: orch, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	client := newClient(conn, userID, h.logger)
	h.logger.Info("connected", "conn", client.ID(), "user", userID)

	go client.writePump()
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		close(c.done)
		c.conn.Close()
		h.orch.Disconnect(c)
		h.logger.Info("disconnected", "conn", c.ID())
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read failed", "conn", c.ID(), "error", err)
			}
			return
		}

		frame, err := ParseInbound(raw)
		if err != nil {
			c.Send(session.EventError, map[string]any{"message": err.Error()})
			continue
		}
		h.dispatch(c, frame)
	}
}

// dispatch routes one frame. A failed operation answers the submitting
// connection only and never tears the connection down.
func (h *Handler) dispatch(c *Client, frame InboundFrame) {
	ctx := context.Background()

	var err error
	switch frame.Type {
	case TypeJoinSession:
		err = h.orch.Join(ctx, c, frame.SessionID)
	case TypeLeaveSession:
		h.orch.Leave(c, frame.SessionID)
	case TypeSendTranscriptLine:
		err = h.orch.SubmitManualText(ctx, frame.SessionID, session.Role(frame.Speaker), frame.Text)
	case TypeStreamAudioChunk:
		var audio []byte
		audio, err = DecodeAudio(frame)
		if err != nil {
			c.Send(session.EventSttError, map[string]any{
				"session_id": frame.SessionID,
				"message":    err.Error(),
			})
			return
		}
		err = h.orch.SubmitAudioChunk(ctx, c, frame.SessionID, audio)
	case TypeRequestSuggestions:
		err = h.orch.RequestSuggestionsNow(ctx, c, frame.SessionID)
	case TypePauseSession:
		err = h.orch.PauseSession(ctx, c.UserID(), frame.SessionID)
	case TypeResumeSession:
		err = h.orch.ResumeSession(ctx, c.UserID(), frame.SessionID)
	case TypeEndSession:
		err = h.orch.EndSession(ctx, c.UserID(), frame.SessionID)
	case TypeCancelSession:
		err = h.orch.CancelSession(ctx, c.UserID(), frame.SessionID)
	default:
		err = errors.New("unknown frame type: " + frame.Type)
	}

	if err != nil {
		c.Send(session.EventError, map[string]any{
			"session_id": frame.SessionID,
			"message":    err.Error(),
		})
	}
}
