package publishers

import (
	"context"
	"errors"
	"fmt"
)

// Fanout hands each archive event to every configured sink. Sinks are
// independent: one refusing an event never blocks the others.
type Fanout struct {
	sinks []Publisher
}

// NewFanout builds a fanout over the given sinks, dropping nil entries.
func NewFanout(sinks []Publisher) *Fanout {
	active := make([]Publisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Fanout{sinks: active}
}

// Publish delivers evt to every sink and reports how many accepted it.
// Per-sink failures come back joined so the caller can log one summary.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.sinks) == 0 {
		return 0, nil
	}

	delivered := 0
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", s.Type(), s.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size reports the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}
