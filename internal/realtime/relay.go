package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// NotifyChannel is the PostgreSQL channel the change triggers notify on.
const NotifyChannel = "clinic_changes"

// Relay LISTENs on PostgreSQL and republishes every notification to a Publisher. It
// owns reconnection: a lost connection is re-established after a fixed backoff, and
// each table is then announced as updated so subscribers refetch whatever they may
// have missed.
type Relay struct {
	dsn     string
	pub     Publisher
	backoff time.Duration
	logger  zerolog.Logger
}

func NewRelay(dsn string, pub Publisher, backoff time.Duration, logger zerolog.Logger) *Relay {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Relay{
		dsn:     dsn,
		pub:     pub,
		backoff: backoff,
		logger:  logger.With().Str("component", "change-relay").Logger(),
	}
}

// Run blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	connected := false
	for {
		err := r.listen(ctx, &connected)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn().Err(err).Dur("backoff", r.backoff).Msg("listen connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.backoff):
		}
	}
}

func (r *Relay) listen(ctx context.Context, connected *bool) error {
	conn, err := pgx.Connect(ctx, r.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	r.logger.Info().Str("channel", NotifyChannel).Msg("listening for changes")

	if *connected {
		r.announceAll(ctx)
	}
	*connected = true

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if err := r.Forward(ctx, n.Payload); err != nil {
			r.logger.Warn().Err(err).Str("payload", n.Payload).Msg("dropping change notification")
		}
	}
}

// Forward decodes one notification payload and publishes it.
func (r *Relay) Forward(ctx context.Context, payload string) error {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	return r.pub.Publish(ctx, ev)
}

func (r *Relay) announceAll(ctx context.Context) {
	for _, table := range Tables {
		if err := r.pub.Publish(ctx, Event{Table: table, Operation: OpUpdate}); err != nil {
			r.logger.Warn().Err(err).Str("table", table).Msg("failed to announce resync")
		}
	}
}
