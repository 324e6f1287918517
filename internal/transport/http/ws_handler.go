package http

import (
	"log/slog"
	"net/http"
	"time"

	"levelup-sidequest/internal/app"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// LeaderboardWS streams leaderboard snapshots to websocket clients.
type LeaderboardWS struct {
	leaderboard *app.LeaderboardService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewLeaderboardWS(leaderboard *app.LeaderboardService, logger *slog.Logger) *LeaderboardWS {
	return &LeaderboardWS{
		leaderboard: leaderboard,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS sends the current leaderboard, then a fresh one after every score commit.
// Inbound messages are read only to notice the client going away.
func (h *LeaderboardWS) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.leaderboard.Subscribe(r.Context())
	if err != nil {
		h.logger.Error("leaderboard subscribe failed", "error", err)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "leaderboard unavailable"}})
		return
	}
	defer cancel()

	closed := make(chan struct{})
	writerDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for {
			select {
			case lb, ok := <-updates:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: lb}); err != nil {
					h.logger.Debug("ws write error", "error", err)
					return
				}
			case <-closed:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closed)
	<-writerDone
}
