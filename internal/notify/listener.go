package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/metrics"
)

const (
	channelName    = "bookmark_changes"
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Listener holds a dedicated Postgres connection subscribed to the bookmark
// change channel and publishes decoded events to the hub. It reconnects with
// capped exponential backoff when the connection drops.
type Listener struct {
	dsn     string
	hub     *Hub
	log     logger.Logger
	onEvent []func(Event)

	initialBackoff time.Duration
	maxBackoff     time.Duration
	listenFn       func(ctx context.Context) error
}

func NewListener(dsn string, hub *Hub, log logger.Logger) *Listener {
	l := &Listener{
		dsn:            dsn,
		hub:            hub,
		log:            log,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
	l.listenFn = l.listen
	return l
}

// OnEvent registers an additional callback invoked for every event, before
// hub fan-out. Must be called before Run.
func (l *Listener) OnEvent(fn func(Event)) {
	l.onEvent = append(l.onEvent, fn)
}

// Run blocks until ctx is cancelled, maintaining the LISTEN session.
func (l *Listener) Run(ctx context.Context) error {
	var wait time.Duration

	for {
		started := time.Now()
		err := l.listenFn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait = retryWait(wait, time.Since(started), l.initialBackoff, l.maxBackoff)
		l.log.Warn("change listener disconnected, reconnecting",
			logger.Error(err), logger.Duration("retry_in", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryWait doubles the previous delay up to max. A session that outlived
// max earns a fresh schedule, and the first attempt waits initial.
func retryWait(prev, session, initial, max time.Duration) time.Duration {
	if session > max {
		return initial
	}
	next := prev * 2
	if next < initial {
		next = initial
	}
	if next > max {
		next = max
	}
	return next
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return fmt.Errorf("listen %s: %w", channelName, err)
	}
	l.log.Info("subscribed to bookmark change notifications")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		ev, err := decodeEvent(n.Payload)
		if err != nil {
			l.log.Warn("discarding malformed change payload", logger.Error(err))
			continue
		}

		metrics.RealtimeEvent(ev.Op)
		for _, fn := range l.onEvent {
			fn(ev)
		}
		l.hub.Publish(ev)
	}
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.UserID == "" {
		return Event{}, fmt.Errorf("payload missing user_id: %q", payload)
	}
	return ev, nil
}
