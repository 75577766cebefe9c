// Package chantransport implements transport.Transport in-process using
// mutex/condition-variable inboxes, one per rank, so the whole world of ranks runs as
// goroutines inside a single process. This is the primary, directly
// testable transport (spec §9's redesign note on isolating the message
// pump behind a narrow interface); natstransport is the secondary,
// genuinely distributed implementation.
package chantransport

import (
	"context"
	"sync"

	"github.com/efficomp/hpknn/pkg/transport"
)

// World is a fixed set of ranks wired together by in-process inboxes.
// Construct one with NewWorld and take each rank's Transport via Rank.
type World struct {
	ranks []*chanTransport

	barrierMu      sync.Mutex
	barrierCond    *sync.Cond
	barrierArrived int
	barrierGen     int
}

// NewWorld builds a world of size ranks, each with its own inbox.
func NewWorld(size int) *World {
	w := &World{ranks: make([]*chanTransport, size)}
	w.barrierCond = sync.NewCond(&w.barrierMu)

	for r := 0; r < size; r++ {
		w.ranks[r] = &chanTransport{
			world: w,
			rank:  r,
			size:  size,
		}
		w.ranks[r].cond = sync.NewCond(&w.ranks[r].mu)
	}
	return w
}

// Rank returns the Transport handle for rank r.
func (w *World) Rank(r int) transport.Transport {
	return w.ranks[r]
}

// Close releases every rank's transport.
func (w *World) Close() error {
	for _, r := range w.ranks {
		r.Close()
	}
	return nil
}

type chanTransport struct {
	world *World
	rank  int
	size  int

	mu     sync.Mutex
	cond   *sync.Cond
	inbox  []transport.Envelope
	closed bool
}

func (t *chanTransport) Rank() int { return t.rank }
func (t *chanTransport) Size() int { return t.size }

func (t *chanTransport) Send(ctx context.Context, dest, tag int, body []uint64) error {
	if dest < 0 || dest >= t.size {
		return transport.ErrClosed
	}
	dst := t.world.ranks[dest]

	dst.mu.Lock()
	defer dst.mu.Unlock()
	if dst.closed {
		return transport.ErrClosed
	}

	bodyCopy := append([]uint64(nil), body...)
	dst.inbox = append(dst.inbox, transport.Envelope{Source: t.rank, Tag: tag, Body: bodyCopy})
	dst.cond.Broadcast()
	return nil
}

// matches reports whether an envelope satisfies a source/tag filter,
// honoring transport.AnyRank and transport.AnyTag wildcards.
func matches(e transport.Envelope, source, tag int) bool {
	if source != transport.AnyRank && e.Source != source {
		return false
	}
	if tag != transport.AnyTag && e.Tag != tag {
		return false
	}
	return true
}

func (t *chanTransport) find(source, tag int) (int, bool) {
	for i, e := range t.inbox {
		if matches(e, source, tag) {
			return i, true
		}
	}
	return 0, false
}

func (t *chanTransport) Probe(ctx context.Context, source, tag int) (transport.Envelope, error) {
	return t.wait(ctx, source, tag, false)
}

func (t *chanTransport) Receive(ctx context.Context, source, tag int) (transport.Envelope, error) {
	return t.wait(ctx, source, tag, true)
}

// wait blocks until a matching envelope is pending, optionally removing it
// from the inbox (consume=true for Receive, false for Probe).
func (t *chanTransport) wait(ctx context.Context, source, tag int, consume bool) (transport.Envelope, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.closed {
			return transport.Envelope{}, transport.ErrClosed
		}
		if idx, ok := t.find(source, tag); ok {
			e := t.inbox[idx]
			if consume {
				t.inbox = append(t.inbox[:idx], t.inbox[idx+1:]...)
			}
			return e, nil
		}
		select {
		case <-ctx.Done():
			return transport.Envelope{}, ctx.Err()
		default:
		}
		t.cond.Wait()
	}
}

func (t *chanTransport) Barrier(ctx context.Context) error {
	w := t.world
	w.barrierMu.Lock()
	gen := w.barrierGen
	w.barrierArrived++
	if w.barrierArrived == len(w.ranks) {
		w.barrierArrived = 0
		w.barrierGen++
		w.barrierCond.Broadcast()
		w.barrierMu.Unlock()
		return nil
	}
	for gen == w.barrierGen {
		w.barrierCond.Wait()
	}
	w.barrierMu.Unlock()
	return nil
}

func (t *chanTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.cond.Broadcast()
	return nil
}
