package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fathima-sithara/chat-core/internal/auth"
	"github.com/fathima-sithara/chat-core/internal/config"
	"github.com/fathima-sithara/chat-core/internal/gateway"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

type wsHandlers struct {
	gw  *gateway.Gateway
	log *zap.SugaredLogger

	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
	authSvc       *auth.Service
}

func newWSHandlers(cfg *config.Config, gw *gateway.Gateway, authSvc *auth.Service, log *zap.SugaredLogger) *wsHandlers {
	return &wsHandlers{
		gw:            gw,
		log:           log,
		pingInterval:  cfg.PingInterval,
		writeDeadline: cfg.WriteDeadline,
		maxMsgSize:    cfg.WS.MaxMessageSizeBytes,
		authSvc:       authSvc,
	}
}

type frame struct {
	Type    string      `json:"type"` // "snapshot", "event" or "error"
	Payload interface{} `json:"payload"`
}

func (w *wsHandlers) authenticate(conn *websocket.Conn) (string, bool) {
	token := conn.Query("token")
	if token == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		_ = conn.Close()
		return "", false
	}
	uid, err := w.authSvc.CurrentUserID(token)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		_ = conn.Close()
		return "", false
	}
	return uid, true
}

// conversation streams the snapshot followed by live appends for
// /ws/conversations/:partner_id?token=<jwt>.
func (w *wsHandlers) conversation(conn *websocket.Conn) {
	uid, ok := w.authenticate(conn)
	if !ok {
		return
	}
	partner := conn.Params("partner_id")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	view, err := w.gw.OpenConversation(ctx, uid, partner)
	cancel()
	if err != nil {
		_ = conn.WriteJSON(frame{Type: "error", Payload: err.Error()})
		_ = conn.Close()
		return
	}
	defer view.Cancel()

	if err := w.writeJSON(conn, frame{Type: "snapshot", Payload: view.Snapshot}); err != nil {
		return
	}

	done := make(chan struct{})
	go w.readUntilClosed(conn, done)

	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case m, open := <-view.Live:
			if !open {
				// subscription closed (possibly for lagging); client must
				// resubscribe and backfill via history
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := w.writeJSON(conn, frame{Type: "event", Payload: m}); err != nil {
				return
			}
		case <-ticker.C:
			if err := w.ping(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// recent streams the conversation list snapshot followed by live upserts
// for /ws/recent?token=<jwt>.
func (w *wsHandlers) recent(conn *websocket.Conn) {
	uid, ok := w.authenticate(conn)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	view, err := w.gw.ListRecent(ctx, uid)
	cancel()
	if err != nil {
		_ = conn.WriteJSON(frame{Type: "error", Payload: err.Error()})
		_ = conn.Close()
		return
	}
	defer view.Cancel()

	if err := w.writeJSON(conn, frame{Type: "snapshot", Payload: view.Snapshot}); err != nil {
		return
	}

	done := make(chan struct{})
	go w.readUntilClosed(conn, done)

	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case e, open := <-view.Live:
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := w.writeJSON(conn, frame{Type: "event", Payload: e}); err != nil {
				return
			}
		case <-ticker.C:
			if err := w.ping(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (w *wsHandlers) writeJSON(conn *websocket.Conn, f frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(w.writeDeadline))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		w.log.Debugw("ws write failed", "error", err)
		return err
	}
	return nil
}

func (w *wsHandlers) ping(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(w.writeDeadline))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// readUntilClosed drains the socket so session termination on the client
// side is noticed and closes the subscription.
func (w *wsHandlers) readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(w.maxMsgSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
