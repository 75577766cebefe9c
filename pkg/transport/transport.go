// Package transport abstracts the point-to-point, tagged message passing
// the coordinator protocol (spec §4.6) runs over, so the master/worker state
// machine can be tested against an in-process fake rather than a real
// distributed runtime (spec §9's "master loop coupling to transport
// specifics" redesign note).
package transport

import (
	"context"
	"errors"
)

// AnyRank and AnyTag are wildcard filters for Probe and Receive: match any
// source rank, or any tag, respectively.
const (
	AnyRank = -1
	AnyTag  = -1
)

// ErrClosed is returned by Send/Probe/Receive once Close has run.
var ErrClosed = errors.New("transport: closed")

// Envelope is one message: its source rank, its tag, and a small integer
// payload. Every message the coordinator protocol defines (ASK, JOB, STOP,
// RESULT, DONE) fits in zero to three scalars (spec §4.6.1), so Body is a
// fixed-shape []uint64 rather than an opaque byte blob.
type Envelope struct {
	Source int
	Tag    int
	Body   []uint64
}

// Transport is an ordered, reliable, tagged point-to-point channel between
// a fixed set of ranks, each aware of its own rank and the world size
// (spec §6's "distributed runtime" external interface). Implementations:
// chantransport (in-process, primary) and natstransport (via NATS).
type Transport interface {
	// Rank returns this process's own rank in [0, Size()).
	Rank() int

	// Size returns the total number of ranks in the world.
	Size() int

	// Send delivers body to dest under tag. Send does not block on the
	// receiver having called Receive; messages queue until consumed.
	Send(ctx context.Context, dest, tag int, body []uint64) error

	// Probe blocks until a message matching source and tag (AnyRank/AnyTag
	// for wildcards) is pending, then returns its envelope WITHOUT
	// consuming it. A subsequent Receive with a source/tag that matches
	// the probed envelope is guaranteed not to block.
	Probe(ctx context.Context, source, tag int) (Envelope, error)

	// Receive blocks until a message matching source and tag is pending,
	// consumes it, and returns it.
	Receive(ctx context.Context, source, tag int) (Envelope, error)

	// Barrier blocks until every rank in the world has called Barrier,
	// then releases all of them.
	Barrier(ctx context.Context) error

	// Close releases transport resources. Outstanding blocking calls
	// return ErrClosed.
	Close() error
}
