package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrasecure/entrasecure/internal/domain"
)

const (
	streamPingInterval = 15 * time.Second
	streamWriteWait    = 5 * time.Second
	streamPongWait     = 60 * time.Second
)

// OverviewStream pushes refreshed security-overview snapshots to connected
// websocket clients. The refresh worker broadcasts after each pass; clients
// get the dashboard updated without polling.
type OverviewStream struct {
	logger         *slog.Logger
	allowedOrigins []string

	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

// NewOverviewStream creates a new overview stream hub
func NewOverviewStream(allowedOrigins []string, logger *slog.Logger) *OverviewStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverviewStream{
		logger:         logger,
		allowedOrigins: allowedOrigins,
		subs:           make(map[*websocket.Conn]struct{}),
	}
}

func (s *OverviewStream) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			s.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/overview: upgrades the connection and keeps it
// subscribed until the client goes away
func (s *OverviewStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := s.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.subs[ws] = struct{}{}
	count := len(s.subs)
	s.mu.Unlock()
	s.logger.Debug("overview stream subscribed", slog.Int("subscribers", count))

	defer func() {
		s.mu.Lock()
		delete(s.subs, ws)
		s.mu.Unlock()
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(streamPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(streamWriteWait))
			case <-done:
				return
			}
		}
	}()

	// Read loop only to observe pongs and the client closing.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("overview stream read ended", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// Broadcast pushes a fresh snapshot to every subscriber. Slow or dead
// connections are dropped rather than allowed to block the worker.
func (s *OverviewStream) Broadcast(overview *domain.SecurityOverview) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ws := range s.subs {
		ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := ws.WriteJSON(overview); err != nil {
			s.logger.Debug("dropping overview subscriber", slog.String("error", err.Error()))
			ws.Close()
			delete(s.subs, ws)
		}
	}
}

// Subscribers returns the current subscriber count
func (s *OverviewStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
