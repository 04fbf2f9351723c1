package ws

import (
	"context"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
)

// EventTee forwards trade lifecycle events to the websocket hub before
// handing them to the next publisher. Price updates pass straight through:
// the hub receives those from the subscriber registry instead.
type EventTee struct {
	hub  *Hub
	next domrepo.EventPublisher
}

func NewEventTee(hub *Hub, next domrepo.EventPublisher) *EventTee {
	return &EventTee{hub: hub, next: next}
}

func (t *EventTee) PublishPrice(ctx context.Context, ev models.PriceUpdateEvent) error {
	return t.next.PublishPrice(ctx, ev)
}

func (t *EventTee) PublishTrade(ctx context.Context, ev models.TradeEvent) error {
	t.hub.OnTrade(ev)
	return t.next.PublishTrade(ctx, ev)
}

func (t *EventTee) Close() error { return t.next.Close() }

var _ domrepo.EventPublisher = (*EventTee)(nil)
