package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
)

const heartbeatInterval = 15 * time.Second

// Signals is the subscription side of *events.Bus.
type Signals interface {
	SubscribeState(fn events.StateHandler) func()
	SubscribeNotifications(fn events.NotificationHandler) func()
}

// EventsHandler streams the signals of the requesting session as server-sent events.
type EventsHandler struct {
	signals   Signals
	sessions  SessionStores
	heartbeat time.Duration
	log       *slog.Logger
}

func NewEventsHandler(signals Signals, sessions SessionStores, log *slog.Logger) *EventsHandler {
	return &EventsHandler{
		signals:   signals,
		sessions:  sessions,
		heartbeat: heartbeatInterval,
		log:       log,
	}
}

// Stream handles GET /api/v1/events. The current snapshot is sent first; later snapshots
// replace undelivered ones so a slow client only ever sees the latest state.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	ctx := r.Context()
	session := getSessionFromContext(ctx)
	store, err := h.sessions.Session(ctx, session)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	states := make(chan domain.StateSync, 1)
	notes := make(chan domain.Notification, 16)

	unsubState := h.signals.SubscribeState(func(s domain.StateSync) {
		if s.Session != session {
			return
		}
		for {
			select {
			case states <- s:
				return
			default:
			}
			select {
			case <-states:
			default:
			}
		}
	})
	defer unsubState()

	unsubNotes := h.signals.SubscribeNotifications(func(n domain.Notification) {
		if n.Session != session {
			return
		}
		select {
		case notes <- n:
		default:
		}
	})
	defer unsubNotes()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "state", store.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case s := <-states:
			err = writeEvent(w, "state", s)
		case n := <-notes:
			err = writeEvent(w, "notification", n)
		case <-ticker.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
		}
		if err != nil {
			h.log.DebugContext(ctx, "event stream closed", slog.String("session", session), slog.Any("error", err))
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
