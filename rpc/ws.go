package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"pettrace/core/events"
	"pettrace/native/bounty"
	"pettrace/observability"
)

const (
	wsWriteTimeout   = 10 * time.Second
	eventHistorySize = 2048
	subscriberBuffer = 64
)

// EventHub fans committed events out to websocket subscribers and keeps a
// bounded history so clients can resume from a sequence cursor.
type EventHub struct {
	mu      sync.Mutex
	subs    map[uint64]chan events.Committed
	nextID  uint64
	history []events.Committed
	closed  bool
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[uint64]chan events.Committed)}
}

// Publish implements events.Sink. A subscriber whose buffer is full is
// disconnected rather than allowed to stall the node; it can reconnect with
// a cursor and replay from history. Sends happen under h.mu so a concurrent
// cancel never closes a channel mid-send.
func (h *EventHub) Publish(batch []events.Committed) {
	if h == nil || len(batch) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.history = append(h.history, batch...)
	if len(h.history) > eventHistorySize {
		excess := len(h.history) - eventHistorySize
		kept := make([]events.Committed, eventHistorySize)
		copy(kept, h.history[excess:])
		h.history = kept
	}
	for _, evt := range batch {
		for id, ch := range h.subs {
			select {
			case ch <- evt:
			default:
				h.dropLocked(id)
			}
		}
	}
}

// dropLocked removes and closes subscriber id. h.mu must be held.
func (h *EventHub) dropLocked(id uint64) {
	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
	observability.Registry().SubscriberDelta(-1)
}

// Subscribe registers a listener for events with a sequence greater than
// since. The returned cancel func is idempotent.
func (h *EventHub) Subscribe(ctx context.Context, since uint64) (<-chan events.Committed, func(), []events.Committed) {
	updates := make(chan events.Committed, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(updates)
		return updates, func() {}, nil
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	backlog := make([]events.Committed, 0)
	for _, entry := range h.history {
		if entry.Sequence > since {
			backlog = append(backlog, entry)
		}
	}
	h.mu.Unlock()
	observability.Registry().SubscriberDelta(1)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			h.dropLocked(id)
			h.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Close disconnects every subscriber. Later publishes are dropped.
func (h *EventHub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id := range h.subs {
		h.dropLocked(id)
	}
}

// eventFilter narrows a stream by event type and report id.
type eventFilter struct {
	eventType string
	reportID  *uint64
}

func parseEventFilter(r *http.Request) (eventFilter, uint64, error) {
	q := r.URL.Query()
	filter := eventFilter{eventType: strings.TrimSpace(q.Get("type"))}
	if raw := strings.TrimSpace(q.Get("report")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, 0, err
		}
		filter.reportID = &id
	}
	var since uint64
	if raw := strings.TrimSpace(q.Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, 0, err
		}
		since = parsed
	}
	return filter, since, nil
}

func (f eventFilter) match(evt events.Committed) bool {
	if f.eventType != "" && evt.Event.Type != f.eventType {
		return false
	}
	if f.reportID != nil {
		id, ok := bounty.ReportIDAttr(&evt.Event)
		if !ok || id != *f.reportID {
			return false
		}
	}
	return true
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	filter, since, err := parseEventFilter(r)
	if err != nil {
		http.Error(w, "invalid stream filter", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter, since); err != nil {
		if websocket.CloseStatus(err) == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter eventFilter, since uint64) error {
	updates, cancel, backlog := s.hub.Subscribe(ctx, since)
	defer cancel()

	for _, evt := range backlog {
		if !filter.match(evt) {
			continue
		}
		if err := writeCommittedEvent(ctx, conn, evt); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.match(evt) {
				continue
			}
			if err := writeCommittedEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeCommittedEvent(ctx context.Context, conn *websocket.Conn, evt events.Committed) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
