package subs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/emergency-dispatch/internal/models"
)

// WSSubscription is a live change feed over one websocket connection. Closing
// it is the unsubscribe handle the reconciler retains and releases on teardown.
type WSSubscription struct {
	conn      *websocket.Conn
	ch        chan models.Update
	closeOnce sync.Once
}

func (s *WSSubscription) Updates() <-chan models.Update { return s.ch }

func (s *WSSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

func (s *WSSubscription) readLoop() {
	defer close(s.ch)
	for {
		var u models.Update
		if err := s.conn.ReadJSON(&u); err != nil {
			return
		}
		select {
		case s.ch <- u:
		default:
			// slow consumer: drop, the polling fallback recovers the state
		}
	}
}

// WSSubscriber dials the update feed for a user. BaseURL is a ws:// or wss://
// endpoint; the user id is appended as the path.
type WSSubscriber struct {
	BaseURL string
	Log     *slog.Logger
}

func (w *WSSubscriber) Subscribe(ctx context.Context, userID string) (*WSSubscription, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, w.BaseURL+"/"+userID, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	sub := &WSSubscription{conn: conn, ch: make(chan models.Update, 16)}
	go sub.readLoop()
	return sub, nil
}
