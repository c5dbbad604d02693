package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appctx "metaschema/internal/core/context"
	"metaschema/pkg/logger"
)

// NotificationHandler receives the payload of one NOTIFY.
type NotificationHandler func(ctx context.Context, payload string)

// Listener holds a dedicated pool connection on LISTEN and forwards
// notifications of one channel to a handler. The connection is re-acquired
// after failures.
type Listener struct {
	pool        *pgxpool.Pool
	channel     string
	handle      NotificationHandler
	onReconnect func(ctx context.Context)
	retryDelay  time.Duration
	waitTimeout time.Duration

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithReconnectHook is called each time LISTEN is re-established after the
// first time; notifications sent meanwhile are lost, so callers usually
// reload.
func WithReconnectHook(fn func(ctx context.Context)) ListenerOption {
	return func(l *Listener) { l.onReconnect = fn }
}

// NewListener creates a listener for channel.
func NewListener(pool *Pool, channel string, handle NotificationHandler, opts ...ListenerOption) *Listener {
	l := &Listener{
		pool:        pool.Pool,
		channel:     channel,
		handle:      handle,
		retryDelay:  time.Second,
		waitTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen creates a listener that feeds s.
func (s *DocumentStore) Listen(pool *Pool, opts ...ListenerOption) *Listener {
	return NewListener(pool, s.channel, s.HandleNotification, opts...)
}

// Start launches the listen loop. It is a no-op when already running.
func (l *Listener) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return nil
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "metadata listener started", "channel", l.channel)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	logger.Info(context.Background(), "metadata listener stopped", "channel", l.channel)
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()

	connected := false
	for {
		if l.ctx.Err() != nil {
			return
		}

		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			l.sleep()
			continue
		}

		if _, err := conn.Exec(l.ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "channel", l.channel, "error", err)
			conn.Release()
			l.sleep()
			continue
		}

		logger.Info(l.ctx, "listening for notifications", "channel", l.channel)
		if connected && l.onReconnect != nil {
			l.onReconnect(l.ctx)
		}
		connected = true

		l.waitForNotifications(conn)
		// the session still has LISTEN active; drop it rather than return it
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}
}

func (l *Listener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		if l.ctx.Err() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(l.ctx, l.waitTimeout)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Warn(l.ctx, "listen connection lost", "channel", l.channel, "error", err)
			return
		}

		logger.Debug(l.ctx, "received notification", "channel", n.Channel, "payload", n.Payload)
		l.dispatch(n.Payload)
	}
}

func (l *Listener) dispatch(payload string) {
	ctx := appctx.StartRun(l.ctx, "notify")
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "notification handler panic recovered", "channel", l.channel, "panic", r)
		}
	}()
	l.handle(ctx, payload)
}

func (l *Listener) sleep() {
	select {
	case <-l.ctx.Done():
	case <-time.After(l.retryDelay):
	}
}
