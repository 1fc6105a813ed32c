package realtime

import (
	"context"
	"errors"

	"wisegate/internal/logger"
	apperrors "wisegate/pkg/errors"
	"wisegate/pkg/metrics"
)

// Notifier delivers a payload on a named channel, best effort.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type namedNotifier struct {
	name string
	Notifier
}

// Fanout publishes to every registered notifier. One failing notifier does
// not stop the others.
type Fanout struct {
	notifiers []namedNotifier
	logger    logger.Logger
}

func NewFanout(log logger.Logger) *Fanout {
	return &Fanout{logger: log}
}

func (f *Fanout) Add(name string, n Notifier) {
	f.notifiers = append(f.notifiers, namedNotifier{name: name, Notifier: n})
}

func (f *Fanout) Len() int {
	return len(f.notifiers)
}

func (f *Fanout) Publish(ctx context.Context, channel string, payload any) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Publish(ctx, channel, payload); err != nil {
			metrics.IncBroadcast(n.name, channel, "error")
			f.logger.DebugwCtx(ctx, "Notifier failed",
				"notifier", n.name,
				"channel", channel,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		metrics.IncBroadcast(n.name, channel, "success")
	}

	if len(errs) > 0 {
		return apperrors.ErrBroadcast.WithCause(errors.Join(errs...))
	}
	return nil
}
