package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/SolanceLab/garmin-mcp/internal/audit"
	"github.com/SolanceLab/garmin-mcp/internal/tools"
)

const (
	// eventBuffer is the per-subscriber queue depth. A full queue drops
	// events rather than stall the tool path.
	eventBuffer = 16

	eventWriteTimeout = 5 * time.Second
)

// EventHub fans completed invocations out to websocket subscribers on
// GET /ws/events. Events share the audit entry wire shape.
type EventHub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

var _ tools.Observer = (*EventHub)(nil)

// NewEventHub builds an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		logger: logger,
		subs:   make(map[chan []byte]struct{}),
	}
}

// ObserveInvocation implements tools.Observer. It never blocks: slow
// subscribers lose events.
func (h *EventHub) ObserveInvocation(inv tools.Invocation) {
	data, err := json.Marshal(audit.Entry{
		ID:         inv.ID,
		Time:       inv.Time.UTC(),
		Tool:       inv.Tool,
		Date:       inv.Date,
		Outcome:    inv.Outcome,
		Error:      inv.Error,
		DurationUS: inv.Duration.Microseconds(),
	})
	if err != nil {
		h.logger.Error("encoding invocation event failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// ServeHTTP upgrades the connection and streams invocation events until the
// client goes away. Inbound data frames are discarded.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Keeps control frames serviced while we only write.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *EventHub) subscribe() chan []byte {
	ch := make(chan []byte, eventBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}
