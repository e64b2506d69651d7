package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/MrWong99/voxpulse/internal/dashboard"
	"github.com/MrWong99/voxpulse/internal/observe"
)

// writeTimeout bounds a single event write to a WebSocket client.
const writeTimeout = 5 * time.Second

// eventMessage is the wire form of a state change on /api/events.
type eventMessage struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	State dashboard.State `json:"state"`
	At    time.Time       `json:"at"`
}

// events upgrades to a WebSocket and streams a snapshot followed by one
// message per dispatch. Clients that fall behind are disconnected.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept already wrote the error response.
		observe.Logger(r.Context()).Debug("events: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	log := observe.Logger(ctx)

	ch, unsubscribe := s.cfg.Store.Subscribe(s.cfg.EventBuffer)
	defer unsubscribe()

	s.cfg.Metrics.EventClients.Add(ctx, 1)
	defer s.cfg.Metrics.EventClients.Add(context.WithoutCancel(ctx), -1)

	snap := eventMessage{ID: uuid.NewString(), Type: "snapshot", State: s.cfg.Store.Snapshot(), At: time.Now().UTC()}
	if err := writeEvent(ctx, conn, snap); err != nil {
		log.Debug("events: initial write failed", "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}
			msg := eventMessage{ID: uuid.NewString(), Type: ev.Action, State: ev.State, At: ev.At}
			if err := writeEvent(ctx, conn, msg); err != nil {
				log.Debug("events: write failed", "err", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, msg eventMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
