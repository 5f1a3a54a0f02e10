package app

import (
	"context"

	"todoreminder/internal/eventbus"
	"todoreminder/internal/notifier"
	"todoreminder/internal/scheduler"
	"todoreminder/internal/storage"
	logx "todoreminder/pkg/logx"
)

// recorder copies delivery events from the bus into the store.
type recorder struct {
	store storage.Store
	log   logx.Logger
}

func (r recorder) run(ctx context.Context, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			d, ok := deliveryFromEvent(e)
			if !ok {
				continue
			}
			if err := r.store.AppendDelivery(ctx, d); err != nil {
				r.log.Warn("audit append failed", logx.String("event", e.Type), logx.Err(err))
			}
		}
	}
}

func deliveryFromEvent(e eventbus.Event) (storage.Delivery, bool) {
	switch e.Type {
	case scheduler.EventFired:
		fe, ok := e.Data.(scheduler.FiredEvent)
		if !ok {
			return storage.Delivery{}, false
		}
		return storage.Delivery{
			At:     fe.At,
			Event:  e.Type,
			Key:    fe.Key,
			Body:   fe.Body,
			DueAt:  fe.DueAt,
			DryRun: fe.DryRun,
		}, true
	case notifier.EventSent, notifier.EventFailed:
		ne, ok := e.Data.(notifier.Event)
		if !ok {
			return storage.Delivery{}, false
		}
		return storage.Delivery{
			At:      ne.At,
			Event:   e.Type,
			Key:     ne.Key,
			Channel: ne.Channel,
			Title:   ne.Title,
			Body:    ne.Body,
			DueAt:   ne.DueAt,
			Error:   ne.Error,
		}, true
	}
	return storage.Delivery{}, false
}
