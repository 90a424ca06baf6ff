package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel the triggers in 002_change_feed.sql use.
const ChangeChannel = "table_changes"

// Publisher receives "table changed" signals. *realtime.Hub implements it.
type Publisher interface {
	Publish(table string)
}

// Listener holds one pooled connection in LISTEN mode and republishes every
// notification payload (a table name) to a Publisher.
type Listener struct {
	pool   *pgxpool.Pool
	pub    Publisher
	logger *zap.Logger
}

// NewListener creates a listener. Call Run to start it.
func NewListener(pool *pgxpool.Pool, pub Publisher, logger *zap.Logger) *Listener {
	return &Listener{pool: pool, pub: pub, logger: logger}
}

// Run listens until ctx is cancelled, reconnecting with capped backoff when
// the connection drops.
func (l *Listener) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("postgres listener disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	l.logger.Info("postgres listener started", zap.String("channel", ChangeChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.pub.Publish(n.Payload)
	}
}
