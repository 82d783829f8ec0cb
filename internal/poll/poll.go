// Package poll keeps a read view fresh by fetching it on a fixed interval.
package poll

import (
	"context"
	"log"
	"sync"
	"time"
)

const DefaultInterval = 3 * time.Second

type Options struct {
	Interval time.Duration
	// Name tags log lines.
	Name string
	// OnError is called for every failed fetch except cancellations.
	OnError func(error)
}

// Poller fetches immediately and then every Interval. A tick that finds the
// previous cycle still running is skipped, so a backend slower than the
// interval still gets to answer. Refresh forces a new cycle and cancels the
// one in flight. A result is applied only when it is newer than the last
// applied one.
type Poller[T any] struct {
	fetch   func(context.Context) (T, error)
	apply   func(T)
	options Options

	// applyMu orders apply calls so a stale cycle cannot land after a newer
	// one that passed the guard first.
	applyMu sync.Mutex
	mu      sync.Mutex
	seq     uint64
	applied uint64
	// inflight is the sequence of the cycle still running, 0 when idle.
	inflight uint64
	skipped  uint64
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New[T any](fetch func(context.Context) (T, error), apply func(T), options Options) *Poller[T] {
	if options.Interval <= 0 {
		options.Interval = DefaultInterval
	}
	return &Poller[T]{fetch: fetch, apply: apply, options: options}
}

// Run polls until ctx is done and then waits for the last fetch to return.
func (p *Poller[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(p.options.Interval)
	defer ticker.Stop()
	defer p.wg.Wait()
	defer p.stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.start(ctx, false)
		}
	}
}

// Refresh starts a new cycle, superseding any cycle still running.
func (p *Poller[T]) Refresh(ctx context.Context) {
	p.start(ctx, true)
}

func (p *Poller[T]) start(ctx context.Context, supersede bool) {
	p.mu.Lock()
	if p.inflight != 0 && !supersede {
		p.skipped++
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	seq := p.seq
	p.inflight = seq
	cycleCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()
		p.cycle(cycleCtx, seq)

		p.mu.Lock()
		if p.inflight == seq {
			p.inflight = 0
		}
		p.mu.Unlock()
	}()
}

// Skipped counts ticks dropped because a fetch was still running.
func (p *Poller[T]) Skipped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Applied returns the sequence number of the last applied result.
func (p *Poller[T]) Applied() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

func (p *Poller[T]) cycle(ctx context.Context, seq uint64) {
	started := time.Now()
	value, err := p.fetch(ctx)
	if elapsed := time.Since(started); elapsed > p.options.Interval {
		log.Printf("poll slow view=%s seq=%d duration_ms=%d", p.options.Name, seq, elapsed.Milliseconds())
	}
	if err != nil {
		// Only Refresh and shutdown cancel a cycle; neither is a failure.
		if ctx.Err() != nil {
			return
		}
		log.Printf("poll failed view=%s seq=%d err=%v", p.options.Name, seq, err)
		if p.options.OnError != nil {
			p.options.OnError(err)
		}
		return
	}

	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if seq <= p.applied || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.applied = seq
	p.mu.Unlock()

	p.apply(value)
}

func (p *Poller[T]) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}
