package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	buildWSWriteWait = 10 * time.Second
	buildWSPongWait  = 60 * time.Second
	buildWSPingEvery = (buildWSPongWait * 9) / 10
)

var buildWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// buildEvent announces a batch reaching the cache.
type buildEvent struct {
	Type  string `json:"type"`
	Batch string `json:"batch"`
	Size  int    `json:"size"`
	At    string `json:"at"`
}

// watchHub fans batch build events out to websocket subscribers. Slow
// subscribers drop events rather than blocking the index.
type watchHub struct {
	mu   sync.Mutex
	subs map[chan buildEvent]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[chan buildEvent]struct{})}
}

// Publish is wired as the index's notify callback.
func (h *watchHub) Publish(batchName string, size int) {
	evt := buildEvent{
		Type:  "batch_built",
		Batch: batchName,
		Size:  size,
		At:    time.Now().UTC().Format(time.RFC3339),
	}
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *watchHub) subscribe() chan buildEvent {
	ch := make(chan buildEvent, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *watchHub) unsubscribe(ch chan buildEvent) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *watchHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := buildWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(buildWSPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(buildWSPongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := h.subscribe()
	defer h.unsubscribe(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(buildWSPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				if err := conn.SetWriteDeadline(time.Now().Add(buildWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(buildWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// The read loop only services pongs and detects the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-done
}
