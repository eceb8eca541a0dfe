package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vampirenirmal/alphaaudio/internal/core"
)

const (
	progressWSWriteWait = 10 * time.Second
	progressWSPongWait  = 60 * time.Second
	progressWSPingEvery = (progressWSPongWait * 9) / 10
)

func newProgressUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowed)
		},
	}
}

type progressWSOutbound struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Kind      core.EventKind `json:"kind,omitempty"`
	Stage     core.Stage     `json:"stage,omitempty"`
	Title     string         `json:"title,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Message   string         `json:"message,omitempty"`
}

func progressMessage(ev core.Event) progressWSOutbound {
	return progressWSOutbound{
		Type:      "progress",
		Kind:      ev.Kind,
		Stage:     ev.Stage,
		Title:     ev.Stage.Title(),
		Operation: ev.Operation,
		Message:   ev.Error,
	}
}

// handleProgress streams stage events for the caller's session. The client
// only reads; anything it sends is discarded.
func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("progress upgrade failed", "session_id", sess.ID(), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := h.hub.Subscribe(sess.ID())
	defer unsubscribe()

	if err := conn.SetReadDeadline(time.Now().Add(progressWSPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(progressWSPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(progressWSPingEvery)
		defer ticker.Stop()

		write := func(out progressWSOutbound) error {
			if err := conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait)); err != nil {
				return err
			}
			return conn.WriteJSON(out)
		}

		if err := write(progressWSOutbound{Type: "subscribed", SessionID: sess.ID()}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := write(progressMessage(ev)); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	h.logger.Debug("progress subscriber connected", "session_id", sess.ID())
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			<-writerDone
			h.logger.Debug("progress subscriber gone", "session_id", sess.ID())
			return
		}
	}
}
