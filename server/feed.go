package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/mscno/kalender/pkg/model"
)

const feedWriteTimeout = 10 * time.Second

// handleChanges handles GET /api/posts/changes. The connection is upgraded to
// a websocket that carries one JSON ChangeEvent per message. The subscription
// is live before the handshake completes.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.store.Subscribe(ctx, s.cfg.Team)
	if err != nil {
		s.writeStoreError(w, r, "subscribe", err)
		return
	}
	defer sub.Unsubscribe()

	ws := websocket.Server{
		// Cross-origin browsers are already stopped by the SameSite cookie.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			s.streamChanges(ctx, cancel, conn, sub)
		},
	}
	ws.ServeHTTP(w, r)
}

func (s *Server) streamChanges(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub Subscription) {
	// clear the deadlines left over from the http server timeouts
	_ = conn.SetDeadline(time.Time{})
	s.logger.DebugContext(ctx, "change feed connected", "remote_addr", conn.Request().RemoteAddr)

	// The client never sends anything; a read error means it went away.
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				s.logger.InfoContext(ctx, "change feed subscription ended")
				return
			}
			if err := s.sendChange(conn, ev); err != nil {
				s.logger.DebugContext(ctx, "change feed write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) sendChange(conn *websocket.Conn, ev model.ChangeEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(conn, ev)
}
