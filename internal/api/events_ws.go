/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

// streamedEvents are the bus events forwarded to dashboard clients. The
// frontend re-renders its visualizations from these instead of polling.
var streamedEvents = []events.EventType{
	events.EventAlgorithmSelected,
	events.EventCategorySelected,
	events.EventSubcategorySelected,
	events.EventPointSelected,
	events.EventSoundSelected,
	events.EventSelectionConflict,
	events.EventFilterChanged,
	events.EventFilterCleared,
	events.EventCatalogRebuilt,
	events.EventCatalogBatchReady,
	events.EventCatalogFailed,
}

type wsEvent struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      events.Payload   `json:"data,omitempty"`
}

// handleEventsWS streams session bus events over a WebSocket. One
// connection per browser tab; slow consumers drop events rather than
// block the bus.
func (a *API) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.WSConnectionsActive.Inc()
	defer telemetry.WSConnectionsActive.Dec()

	a.logger.Debug().
		Str("session_id", session.ID).
		Msg("event stream connected")

	ctx := r.Context()

	// Fan all subscribed event types into one channel so the write loop
	// stays single-threaded.
	merged := make(chan wsEvent, 64)
	mergeCtx, cancelMerge := context.WithCancel(ctx)
	defer cancelMerge()

	for _, eventType := range streamedEvents {
		sub := session.Bus.Subscribe(eventType)
		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-mergeCtx.Done():
					session.Bus.Unsubscribe(eventType, sub)
					return
				case payload, open := <-sub:
					if !open {
						return
					}
					select {
					case merged <- wsEvent{Type: eventType, Timestamp: time.Now(), Data: payload}:
					default:
						// Drop rather than stall the session bus.
					}
				}
			}
		}(eventType, sub)
	}

	// Read loop exists only to detect disconnects and consume pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return

		case <-done:
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return

		case <-pingTicker.C:
			if err := writeWSEvent(ctx, conn, wsEvent{Type: "ping", Timestamp: time.Now()}); err != nil {
				a.logger.Debug().Err(err).Msg("ping failed")
				conn.Close(ws.StatusInternalError, "ping failed")
				return
			}

		case event := <-merged:
			session.Touch()
			if err := writeWSEvent(ctx, conn, event); err != nil {
				a.logger.Debug().Err(err).Msg("event send failed")
				conn.Close(ws.StatusInternalError, "send failed")
				return
			}
		}
	}
}

func writeWSEvent(ctx context.Context, conn *ws.Conn, event wsEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
