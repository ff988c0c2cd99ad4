package relay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pulpito/api/internal/store"
)

type fakeCanvas struct {
	mu           sync.Mutex
	syncCalls    int
	lastSermonID string
	lastBlocks   []store.Block
	preached     map[string]bool
	syncErr      error
}

func (f *fakeCanvas) SyncCanvas(ctx context.Context, sermonID string, blocks []store.Block, baseRevision *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return 3, f.syncErr
	}
	f.syncCalls++
	f.lastSermonID = sermonID
	f.lastBlocks = blocks
	return int64(f.syncCalls), nil
}

func (f *fakeCanvas) MarkBlockPreached(ctx context.Context, sermonID, blockID string, preached bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.preached == nil {
		f.preached = make(map[string]bool)
	}
	f.preached[blockID] = preached
	return nil
}

func setupHub(t *testing.T, canvas Canvas) (*httptest.Server, func()) {
	t.Helper()
	hub := NewHub(canvas)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	return srv, func() {
		srv.Close()
		cancel()
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope Envelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return envelope
}

func TestSyncCanvasPersistsAndBroadcastsToOthers(t *testing.T) {
	canvas := &fakeCanvas{}
	srv, cleanup := setupHub(t, canvas)
	defer cleanup()

	sender := dial(t, srv)
	defer sender.Close()
	receiver := dial(t, srv)
	defer receiver.Close()
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, sender, EventSyncCanvas, canvasPayload{
		SermonID: "srm_1",
		Blocks:   []store.Block{{ID: "b1", Type: "TEXTO_BASE", Content: "No princípio"}},
	})

	envelope := readEvent(t, receiver)
	if envelope.Event != EventCanvasUpdated {
		t.Fatalf("expected canvas-updated, got %s", envelope.Event)
	}
	var payload canvasPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.SermonID != "srm_1" || payload.Revision != 1 || len(payload.Blocks) != 1 {
		t.Fatalf("unexpected broadcast payload: %+v", payload)
	}

	canvas.mu.Lock()
	defer canvas.mu.Unlock()
	if canvas.syncCalls != 1 || canvas.lastSermonID != "srm_1" {
		t.Fatalf("expected one persisted sync, got %d for %s", canvas.syncCalls, canvas.lastSermonID)
	}

	// The sender must not receive its own broadcast.
	_ = sender.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := sender.ReadMessage(); err == nil {
		t.Fatal("sender received its own broadcast")
	}
}

func TestSyncMetaBroadcastsWithoutPersisting(t *testing.T) {
	canvas := &fakeCanvas{}
	srv, cleanup := setupHub(t, canvas)
	defer cleanup()

	sender := dial(t, srv)
	defer sender.Close()
	receiver := dial(t, srv)
	defer receiver.Close()
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, sender, EventSyncMeta, metaPayload{
		SermonID: "srm_1",
		Meta:     json.RawMessage(`{"title":"Novo título"}`),
	})

	envelope := readEvent(t, receiver)
	if envelope.Event != EventMetaUpdated {
		t.Fatalf("expected meta-updated, got %s", envelope.Event)
	}

	canvas.mu.Lock()
	defer canvas.mu.Unlock()
	if canvas.syncCalls != 0 {
		t.Fatal("sync-meta must not persist anything")
	}
}

func TestPulpitActionMarksPreachedAndBroadcasts(t *testing.T) {
	canvas := &fakeCanvas{}
	srv, cleanup := setupHub(t, canvas)
	defer cleanup()

	sender := dial(t, srv)
	defer sender.Close()
	receiver := dial(t, srv)
	defer receiver.Close()
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, sender, EventPulpitAction, pulpitPayload{
		SermonID: "srm_1",
		BlockID:  "b1",
		Action:   ActionMarkAsPreached,
	})

	envelope := readEvent(t, receiver)
	if envelope.Event != EventPulpitStateChanged {
		t.Fatalf("expected pulpit-state-changed, got %s", envelope.Event)
	}

	canvas.mu.Lock()
	defer canvas.mu.Unlock()
	if !canvas.preached["b1"] {
		t.Fatal("expected block b1 marked as preached")
	}
}

func TestPulpitActionUnknownStillBroadcasts(t *testing.T) {
	canvas := &fakeCanvas{}
	srv, cleanup := setupHub(t, canvas)
	defer cleanup()

	sender := dial(t, srv)
	defer sender.Close()
	receiver := dial(t, srv)
	defer receiver.Close()
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, sender, EventPulpitAction, pulpitPayload{
		SermonID: "srm_1",
		BlockID:  "b1",
		Action:   "highlight",
	})

	envelope := readEvent(t, receiver)
	if envelope.Event != EventPulpitStateChanged {
		t.Fatalf("expected pulpit-state-changed, got %s", envelope.Event)
	}
	canvas.mu.Lock()
	defer canvas.mu.Unlock()
	if len(canvas.preached) != 0 {
		t.Fatal("unknown action must not touch the store")
	}
}

func TestStaleSyncRejectsSenderOnly(t *testing.T) {
	canvas := &fakeCanvas{syncErr: store.ErrStaleRevision}
	srv, cleanup := setupHub(t, canvas)
	defer cleanup()

	sender := dial(t, srv)
	defer sender.Close()
	receiver := dial(t, srv)
	defer receiver.Close()
	time.Sleep(50 * time.Millisecond)

	base := int64(1)
	sendEvent(t, sender, EventSyncCanvas, canvasPayload{
		SermonID:     "srm_1",
		BaseRevision: &base,
	})

	envelope := readEvent(t, sender)
	if envelope.Event != EventSyncRejected {
		t.Fatalf("expected sync-rejected for sender, got %s", envelope.Event)
	}
	var rejected canvasPayload
	if err := json.Unmarshal(envelope.Data, &rejected); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if rejected.Revision != 3 {
		t.Fatalf("expected rejection to carry the server revision 3, got %d", rejected.Revision)
	}

	_ = receiver.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := receiver.ReadMessage(); err == nil {
		t.Fatal("stale sync must not broadcast to other clients")
	}
}

func TestRejectionAfterDisconnectIsDropped(t *testing.T) {
	hub := NewHub(&fakeCanvas{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	gone := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- gone
	hub.unregister <- gone

	// The reply goes through the hub, which already closed gone.send; it
	// must be discarded, not sent.
	hub.sendTo(gone, EventSyncRejected, map[string]any{"sermonId": "srm_1"})

	connected := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- connected
	hub.sendTo(connected, EventSyncRejected, map[string]any{"sermonId": "srm_1"})

	select {
	case <-connected.send:
	case <-time.After(time.Second):
		t.Fatal("expected reply delivered to the connected client")
	}
}
