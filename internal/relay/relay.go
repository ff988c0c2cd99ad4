// Package relay is the WebSocket fan-out between clients editing or
// presenting the same sermon. It holds no state between messages; clients
// filter broadcasts by sermonId themselves.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pulpito/api/internal/store"
)

// Client→relay events.
const (
	EventSyncCanvas   = "sync-canvas"
	EventSyncMeta     = "sync-meta"
	EventPulpitAction = "pulpit-action"
)

// Relay→client events.
const (
	EventCanvasUpdated      = "canvas-updated"
	EventMetaUpdated        = "meta-updated"
	EventPulpitStateChanged = "pulpit-state-changed"
	EventSyncRejected       = "sync-rejected"
)

const ActionMarkAsPreached = "markAsPreached"

// Envelope is the wire shape of every relay message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Canvas is what the relay needs from the application layer to apply the
// side effects of sync-canvas and pulpit-action messages.
type Canvas interface {
	SyncCanvas(ctx context.Context, sermonID string, blocks []store.Block, baseRevision *int64) (int64, error)
	MarkBlockPreached(ctx context.Context, sermonID, blockID string, preached bool) error
}

type Hub struct {
	canvas Canvas

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	reply      chan outbound
}

// outbound carries a marshaled event plus the sender to exclude from the
// fan-out.
type outbound struct {
	sender  *Client
	message []byte
}

func NewHub(canvas Canvas) *Hub {
	return &Hub{
		canvas:     canvas,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		reply:      make(chan outbound, 64),
	}
}

// Run owns the client set. It exits when ctx is canceled, closing every
// connected client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}
		case out := <-h.broadcast:
			for client := range h.clients {
				if client == out.sender {
					continue
				}
				select {
				case client.send <- out.message:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		case out := <-h.reply:
			if !h.clients[out.sender] {
				continue
			}
			select {
			case out.sender.send <- out.message:
			default:
				delete(h.clients, out.sender)
				close(out.sender.send)
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP lets the hub mount directly on a mux route.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: upgrade failed: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

type canvasPayload struct {
	SermonID     string        `json:"sermonId"`
	Blocks       []store.Block `json:"blocks"`
	BaseRevision *int64        `json:"baseRevision,omitempty"`
	Revision     int64         `json:"revision,omitempty"`
}

type metaPayload struct {
	SermonID string          `json:"sermonId"`
	Meta     json.RawMessage `json:"meta"`
}

type pulpitPayload struct {
	SermonID string `json:"sermonId"`
	BlockID  string `json:"blockId"`
	Action   string `json:"action"`
}

func (h *Hub) handleMessage(sender *Client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("relay: dropping malformed message: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch envelope.Event {
	case EventSyncCanvas:
		h.handleSyncCanvas(ctx, sender, envelope.Data)
	case EventSyncMeta:
		var payload metaPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			log.Printf("relay: bad sync-meta payload: %v", err)
			return
		}
		// Metadata persistence goes through the sermon PATCH; the relay
		// only rebroadcasts.
		h.send(sender, EventMetaUpdated, payload)
	case EventPulpitAction:
		h.handlePulpitAction(ctx, sender, envelope.Data)
	default:
		log.Printf("relay: ignoring unknown event %q", envelope.Event)
	}
}

func (h *Hub) handleSyncCanvas(ctx context.Context, sender *Client, data json.RawMessage) {
	var payload canvasPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("relay: bad sync-canvas payload: %v", err)
		return
	}
	if payload.SermonID == "" {
		return
	}

	revision, err := h.canvas.SyncCanvas(ctx, payload.SermonID, payload.Blocks, payload.BaseRevision)
	if err != nil {
		log.Printf("relay: sync-canvas persist failed sermon=%s err=%v", payload.SermonID, err)
		if errors.Is(err, store.ErrStaleRevision) {
			h.sendTo(sender, EventSyncRejected, map[string]any{
				"sermonId": payload.SermonID,
				"revision": revision,
			})
		}
		return
	}

	h.send(sender, EventCanvasUpdated, canvasPayload{
		SermonID: payload.SermonID,
		Blocks:   payload.Blocks,
		Revision: revision,
	})
}

func (h *Hub) handlePulpitAction(ctx context.Context, sender *Client, data json.RawMessage) {
	var payload pulpitPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("relay: bad pulpit-action payload: %v", err)
		return
	}

	if payload.Action == ActionMarkAsPreached {
		if err := h.canvas.MarkBlockPreached(ctx, payload.SermonID, payload.BlockID, true); err != nil {
			log.Printf("relay: markAsPreached failed block=%s err=%v", payload.BlockID, err)
		}
	}
	// State change broadcasts regardless of the action value.
	h.send(sender, EventPulpitStateChanged, payload)
}

// send broadcasts an event to every client except the sender.
func (h *Hub) send(sender *Client, event string, payload any) {
	message, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("relay: encode %s: %v", event, err)
		return
	}
	h.broadcast <- outbound{sender: sender, message: message}
}

// sendTo answers only the sender. The write goes through the hub
// goroutine, which owns every send channel's lifecycle.
func (h *Hub) sendTo(client *Client, event string, payload any) {
	message, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("relay: encode %s: %v", event, err)
		return
	}
	h.reply <- outbound{sender: client, message: message}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
