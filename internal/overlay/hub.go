// Package overlay publishes overlay state to WebSocket subscribers, which
// draw it on screen.
package overlay

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const defaultWriteTimeout = 2 * time.Second

// Message types.
const (
	TypeOverlay    = "overlay"
	TypeVisibility = "overlay_visibility"
	TypeHide       = "overlay_hide"
)

// Rect is an anchor rectangle in absolute desktop coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectOf converts an image rectangle.
func RectOf(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

type OverlayMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Anchor Rect   `json:"anchor"`
}

type VisibilityMessage struct {
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
}

type HideMessage struct {
	Type string `json:"type"`
}

// Hub tracks connected clients and the overlay they should show.
type Hub struct {
	writeTimeout time.Duration

	mu      sync.RWMutex
	conns   map[*websocket.Conn]struct{}
	current *OverlayMessage
	visible bool
	pending bool // current changed while hidden
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		writeTimeout: defaultWriteTimeout,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// Register adds a connection and replays the current overlay to it.
func (h *Hub) Register(ctx context.Context, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	current, visible := h.current, h.visible
	h.mu.Unlock()

	if current == nil {
		return
	}
	_ = h.write(ctx, conn, *current)
	if !visible {
		_ = h.write(ctx, conn, VisibilityMessage{Type: TypeVisibility, Visible: false})
	}
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast writes msg to every client and waits for the writes, so
// successive broadcasts arrive in order.
func (h *Hub) Broadcast(ctx context.Context, msg any) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			if err := h.write(ctx, c, msg); err != nil {
				slog.Debug("websocket write failed", "error", err)
			}
		}(c)
	}
	wg.Wait()
}

func (h *Hub) write(ctx context.Context, c *websocket.Conn, msg any) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}

// Present shows text anchored next to the captured region. While the
// overlay is hidden by SetVisible(false) the text is stored and only sent
// once it is made visible again.
func (h *Hub) Present(ctx context.Context, text string, anchor image.Rectangle) {
	msg := OverlayMessage{Type: TypeOverlay, Text: text, Anchor: RectOf(anchor)}
	h.mu.Lock()
	hidden := h.current != nil && !h.visible
	h.current = &msg
	if hidden {
		h.pending = true
		h.mu.Unlock()
		return
	}
	h.visible = true
	h.mu.Unlock()
	h.Broadcast(ctx, msg)
}

// Hide removes the overlay.
func (h *Hub) Hide(ctx context.Context) {
	h.mu.Lock()
	had := h.current != nil
	h.current = nil
	h.visible = false
	h.pending = false
	h.mu.Unlock()
	if had {
		h.Broadcast(ctx, HideMessage{Type: TypeHide})
	}
}

// SetVisible temporarily hides or re-shows the current overlay.
func (h *Hub) SetVisible(ctx context.Context, visible bool) {
	h.mu.Lock()
	if h.current == nil || h.visible == visible {
		h.mu.Unlock()
		return
	}
	h.visible = visible
	var msg any = VisibilityMessage{Type: TypeVisibility, Visible: visible}
	if visible && h.pending {
		msg = *h.current
		h.pending = false
	}
	h.mu.Unlock()
	h.Broadcast(ctx, msg)
}

// Visible reports whether an overlay is currently shown.
func (h *Hub) Visible() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current != nil && h.visible
}

// Current returns the overlay being shown, if any.
func (h *Hub) Current() (OverlayMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return OverlayMessage{}, false
	}
	return *h.current, true
}
