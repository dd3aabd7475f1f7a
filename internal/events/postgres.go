package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"shopfloor.io/mes/internal/pkg/logger"
)

// Listener blocks until the next notification arrives.
type Listener interface {
	WaitForNotification(ctx context.Context) (Notification, error)
}

// Execer is satisfied by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGListener holds one dedicated connection that has issued LISTEN for every
// subscribed channel. It is not safe for concurrent use.
type PGListener struct {
	conn     *pgx.Conn
	channels []Channel
}

// Listen opens a dedicated connection and subscribes to channels.
func Listen(ctx context.Context, dsn string, channels ...Channel) (*PGListener, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	for _, ch := range channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch.String()}.Sanitize()); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
		logger.Info("Subscribed to notification channel", zap.String("channel", ch.String()))
	}
	return &PGListener{conn: conn, channels: channels}, nil
}

// WaitForNotification blocks without a timeout until a notification arrives,
// the connection fails, or ctx is cancelled.
func (l *PGListener) WaitForNotification(ctx context.Context) (Notification, error) {
	n, err := l.conn.WaitForNotification(ctx)
	if err != nil {
		return Notification{}, err
	}
	return Notification{PID: n.PID, Channel: n.Channel, Payload: n.Payload}, nil
}

// Close releases the listener connection.
func (l *PGListener) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}

// Publish announces payload on channel through db. Inside a transaction the
// notification is delivered only when the transaction commits.
func Publish(ctx context.Context, db Execer, channel Channel, payload string) error {
	if channel == ChannelUnknown {
		return fmt.Errorf("publish: unknown channel")
	}
	if _, err := db.Exec(ctx, "SELECT pg_notify($1, $2)", channel.String(), payload); err != nil {
		return fmt.Errorf("notify %s: %w", channel, err)
	}
	return nil
}
