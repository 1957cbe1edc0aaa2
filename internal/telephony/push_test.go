package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"agent-console/internal/callstate"

	"github.com/gorilla/websocket"
)

type collector struct {
	mu  sync.Mutex
	evs []callstate.Event
	ch  chan struct{}
}

func (c *collector) Deliver(ev callstate.Event) {
	c.mu.Lock()
	c.evs = append(c.evs, ev)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) events() []callstate.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]callstate.Event, len(c.evs))
	copy(out, c.evs)
	return out
}

func TestPushClient_DeliversInOrderAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"incoming-call-ringing","data":{"callId":"S1","agentPhoneNumber":"100"}}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"call-answered","data":{"callId":"S1","agentPhoneNumber":"100"}}`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"call-disconnected","data":{"callId":"S1","agentPhoneNumber":"100"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &collector{ch: make(chan struct{}, 8)}
	p := NewPushClient(srv.URL, "tok", sink, nil)
	p.initialDelay = 10 * time.Millisecond
	p.maxDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-sink.ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	evs := sink.events()
	want := []callstate.EventKind{callstate.EventIncomingRinging, callstate.EventAnswered, callstate.EventDisconnected}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), evs)
	}
	for i, k := range want {
		if evs[i].Kind != k {
			t.Fatalf("event %d: expected %s, got %s", i, k, evs[i].Kind)
		}
	}
}
