package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// PushClient keeps a websocket to the telephony push channel open and feeds every
// decoded event to a Sink. Messages are read on one goroutine, so arrival order is kept.
type PushClient struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	sink   Sink
	log    *slog.Logger

	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewPushClient accepts http(s) or ws(s) URLs. token, when set, is sent as a bearer token.
func NewPushClient(url, token string, sink Sink, log *slog.Logger) *PushClient {
	if log == nil {
		log = slog.Default()
	}
	if strings.HasPrefix(url, "http") {
		url = "ws" + url[len("http"):]
	}
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return &PushClient{
		url:          url,
		header:       h,
		dialer:       websocket.DefaultDialer,
		sink:         sink,
		log:          log.With("component", "telephony.push"),
		initialDelay: initialReconnectDelay,
		maxDelay:     maxReconnectDelay,
	}
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (p *PushClient) Run(ctx context.Context) {
	delay := p.initialDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := p.dialer.DialContext(ctx, p.url, p.header)
		if err != nil {
			p.log.Warn("push channel connect failed, retrying", "err", err, "retry_in", delay.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
			continue
		}

		delay = p.initialDelay
		p.log.Info("push channel connected")
		err = p.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("push channel lost", "err", err)
	}
}

func (p *PushClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := Decode(msg)
		switch {
		case errors.Is(err, ErrUnknownEvent):
			p.log.Debug("unknown push event ignored", "err", err)
			continue
		case err != nil:
			p.log.Warn("malformed push event", "err", err)
			continue
		}
		p.sink.Deliver(ev)
	}
}
