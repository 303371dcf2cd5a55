package board

import (
	"context"
	"log/slog"
	"time"

	"github.com/sujalbistaa/retroboard/internal/models"
	"github.com/sujalbistaa/retroboard/internal/notify"
	"github.com/sujalbistaa/retroboard/internal/ws"
)

const notifyTimeout = 15 * time.Second

// Hub is the fan-out the broadcaster publishes through.
type Hub interface {
	Publish(event string, data any) error
}

// Broadcaster announces committed state changes to every session and, for
// aggregates, to the configured notifiers.
type Broadcaster struct {
	hub      Hub
	notifier *notify.Manager
	log      *slog.Logger
}

// NewBroadcaster creates a broadcaster. notifier may be nil.
func NewBroadcaster(hub Hub, notifier *notify.Manager, log *slog.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, notifier: notifier, log: log}
}

// ItemCreated announces a new item to all sessions, its author included.
func (b *Broadcaster) ItemCreated(item models.Item) {
	b.publish(ws.EventItemCreated, ItemPayload{Item: item})
}

// LikeChanged announces a toggle to all sessions.
func (b *Broadcaster) LikeChanged(change models.LikeChange) {
	b.publish(ws.EventItemLikeChanged, change)
}

// AggregateUpdated announces a newly published aggregate. Webhook delivery
// runs in the background and never holds up the broadcast.
func (b *Broadcaster) AggregateUpdated(ctx context.Context, r models.AggregateResult) {
	b.publish(ws.EventAggregateUpdated, r)

	if b.notifier == nil || !b.notifier.HasNotifiers() {
		return
	}
	n := notify.AggregatePublished(r)
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := b.notifier.Broadcast(nctx, n); err != nil {
			b.log.Warn("aggregate notification failed", slog.Any("error", err))
		}
	}()
}

func (b *Broadcaster) publish(event string, data any) {
	if err := b.hub.Publish(event, data); err != nil {
		b.log.Warn("broadcast failed", slog.String("event", event), slog.Any("error", err))
	}
}
