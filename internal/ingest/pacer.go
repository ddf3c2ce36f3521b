package ingest

import (
	"context"
	"time"
)

// Pacer enforces a minimum gap between consecutive upstream requests of one
// paging sequence. It is a strict serial delay, not a token bucket: every
// request, the first included, waits until Interval has passed since the
// previous request finished (or since Wait was first called).
//
// A Pacer is not safe for concurrent use; each paging sequence owns one.
type Pacer struct {
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	last     time.Time
}

// NewPacer returns a Pacer with the given interval using the wall clock.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.interval
	if !p.last.IsZero() {
		d = p.interval - p.now().Sub(p.last)
	}
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

// Done records that a request finished. The next Wait is measured from here.
func (p *Pacer) Done() {
	p.last = p.now()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
