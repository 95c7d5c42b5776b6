package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/pkg/session"
)

const subscriptionBuffer = 64

// Subscribe opens the websocket change feed. The server subscribes before it
// completes the handshake, so every mutation made after Subscribe returns is
// delivered.
func (c *HTTPClient) Subscribe(ctx context.Context) (Subscription, error) {
	if c.session == "" {
		return nil, &AuthError{}
	}
	wsURL := *c.base
	wsURL.Path += "/api/posts/changes"
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}

	cfg, err := websocket.NewConfig(wsURL.String(), c.base.String())
	if err != nil {
		return nil, &StoreError{Op: "subscribe", Err: err}
	}
	cfg.Header = http.Header{}
	cfg.Header.Add("Cookie", (&http.Cookie{Name: session.CookieName, Value: c.session}).String())

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		var derr *websocket.DialError
		if errors.As(err, &derr) && errors.Is(derr.Err, websocket.ErrBadStatus) {
			// the guard answers a missing or stale session with a redirect
			return nil, &AuthError{}
		}
		return nil, &StoreError{Op: "subscribe", Err: err}
	}

	sctx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{
		conn:   conn,
		events: make(chan model.ChangeEvent, subscriptionBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	stop := context.AfterFunc(sctx, func() { _ = conn.Close() })
	go func() {
		defer stop()
		sub.read(sctx, c)
	}()
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan model.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *wsSubscription) Events() <-chan model.ChangeEvent {
	return s.events
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.Close()
	})
	<-s.done
}

func (s *wsSubscription) read(ctx context.Context, c *HTTPClient) {
	defer close(s.done)
	defer close(s.events)
	for {
		var ev model.ChangeEvent
		if err := websocket.JSON.Receive(s.conn, &ev); err != nil {
			if ctx.Err() == nil {
				c.logger.DebugContext(ctx, "change feed closed", "error", err)
			}
			return
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
