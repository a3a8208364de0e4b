package bridge

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harrylevesque/aviator/internal/metrics"
	"github.com/harrylevesque/aviator/internal/utils"
)

const tracerName = "github.com/harrylevesque/aviator/internal/bridge"

// Poster schedules work on the serving loop. *Loop implements it.
type Poster interface {
	Post(t Task) error
}

// Broadcaster fans a message out to connected clients. *hub.Hub implements it.
type Broadcaster interface {
	Broadcast(msg string) int
}

// Bridge turns a synchronous "registry changed" call into a broadcast task on
// the loop. Register NotifyChanged as a registry listener.
type Bridge struct {
	loop    Poster
	hub     Broadcaster
	message string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(loop Poster, hub Broadcaster, message string, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Bridge{
		loop:    loop,
		hub:     hub,
		message: message,
		logger:  logger,
		metrics: m,
	}
}

// NotifyChanged is safe from any goroutine and returns without waiting for
// the broadcast. If the loop is not running the signal is dropped; clients
// connecting later read current state themselves.
func (b *Bridge) NotifyChanged() {
	err := b.loop.Post(b.broadcast)
	switch {
	case err == nil:
	case errors.Is(err, ErrLoopNotRunning):
		b.metrics.DroppedNotification()
		b.logger.Debug("bridge: loop not running, change notification dropped")
	default:
		b.logger.Error("bridge: failed to schedule broadcast", "err", err)
	}
}

func (b *Bridge) broadcast(ctx context.Context) {
	_, span := otel.Tracer(tracerName).Start(ctx, "bridge.broadcast")
	defer span.End()

	n := b.hub.Broadcast(b.message)
	span.SetAttributes(attribute.Int("aviator.delivered", n))
}
