// Package natstransport implements transport.Transport over NATS
// (github.com/nats-io/nats.go), for running the coordinator protocol
// (spec §4.6) across real, separate processes rather than in-process
// goroutines. Each rank subscribes to its own inbox subject and every
// Send is a point-to-point publish to the destination rank's subject.
package natstransport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/efficomp/hpknn/pkg/transport"
)

// Transport is a NATS-backed transport.Transport for one rank within a
// named run. All ranks of a run must share the same runID and connect to
// the same NATS server.
type Transport struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	runID  string
	rank   int
	size   int

	mu     sync.Mutex
	cond   *sync.Cond
	inbox  []transport.Envelope
	closed bool
}

// Connect dials natsURL and subscribes rank's inbox subject for the given
// run. size is the total rank count; every rank in the run must call
// Connect with the same runID and size.
func Connect(natsURL, runID string, rank, size int) (*Transport, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	t := &Transport{nc: nc, runID: runID, rank: rank, size: size}
	t.cond = sync.NewCond(&t.mu)

	sub, err := nc.Subscribe(inboxSubject(runID, rank), t.onMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe inbox: %w", err)
	}
	t.sub = sub

	return t, nil
}

// inboxSubject is the subject rank listens on within runID.
func inboxSubject(runID string, rank int) string {
	return fmt.Sprintf("hpknn.%s.%d", runID, rank)
}

func (t *Transport) Rank() int { return t.rank }
func (t *Transport) Size() int { return t.size }

func (t *Transport) onMessage(msg *nats.Msg) {
	source, tag, body, err := decodeEnvelope(msg.Data)
	if err != nil {
		return
	}

	t.mu.Lock()
	t.inbox = append(t.inbox, transport.Envelope{Source: source, Tag: tag, Body: body})
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *Transport) Send(ctx context.Context, dest, tag int, body []uint64) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	data := encodeEnvelope(t.rank, tag, body)
	return t.nc.Publish(inboxSubject(t.runID, dest), data)
}

func matches(e transport.Envelope, source, tag int) bool {
	if source != transport.AnyRank && e.Source != source {
		return false
	}
	if tag != transport.AnyTag && e.Tag != tag {
		return false
	}
	return true
}

func (t *Transport) find(source, tag int) (int, bool) {
	for i, e := range t.inbox {
		if matches(e, source, tag) {
			return i, true
		}
	}
	return 0, false
}

func (t *Transport) Probe(ctx context.Context, source, tag int) (transport.Envelope, error) {
	return t.wait(ctx, source, tag, false)
}

func (t *Transport) Receive(ctx context.Context, source, tag int) (transport.Envelope, error) {
	return t.wait(ctx, source, tag, true)
}

func (t *Transport) wait(ctx context.Context, source, tag int, consume bool) (transport.Envelope, error) {
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

// Barrier uses a dedicated barrier subject per run: every rank publishes
// its arrival and waits for a fan-out release once all ranks have arrived.
// Rank 0 coordinates; the rest only listen.
func (t *Transport) Barrier(ctx context.Context) error {
	arriveSubj := fmt.Sprintf("hpknn.%s.barrier.arrive", t.runID)
	releaseSubj := fmt.Sprintf("hpknn.%s.barrier.release", t.runID)

	releaseCh := make(chan *nats.Msg, 1)
	sub, err := t.nc.ChanSubscribe(releaseSubj, releaseCh)
	if err != nil {
		return fmt.Errorf("subscribe barrier release: %w", err)
	}
	defer sub.Unsubscribe()

	if t.rank == 0 {
		arrivedCh := make(chan *nats.Msg, t.size)
		arriveSub, err := t.nc.ChanSubscribe(arriveSubj, arrivedCh)
		if err != nil {
			return fmt.Errorf("subscribe barrier arrive: %w", err)
		}
		defer arriveSub.Unsubscribe()

		if err := t.nc.Publish(arriveSubj, nil); err != nil {
			return err
		}

		arrived := 0
		for arrived < t.size {
			select {
			case <-arrivedCh:
				arrived++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return t.nc.Publish(releaseSubj, nil)
	}

	if err := t.nc.Publish(arriveSubj, nil); err != nil {
		return err
	}
	select {
	case <-releaseCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.cond.Broadcast()
	t.mu.Unlock()

	if t.sub != nil {
		t.sub.Unsubscribe()
	}
	t.nc.Close()
	return nil
}

// encodeEnvelope packs source, tag and body as a varint-prefixed byte
// stream: source, tag, len(body), body...
func encodeEnvelope(source, tag int, body []uint64) []byte {
	buf := make([]byte, 0, 8*(3+len(body)))
	var tmp [binary.MaxVarintLen64]byte

	putUvarint := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf = append(buf, tmp[:n]...)
	}

	putUvarint(uint64(source))
	putUvarint(uint64(tag))
	putUvarint(uint64(len(body)))
	for _, v := range body {
		putUvarint(v)
	}
	return buf
}

func decodeEnvelope(data []byte) (source, tag int, body []uint64, err error) {
	r := data

	readUvarint := func() (uint64, error) {
		v, n := binary.Uvarint(r)
		if n <= 0 {
			return 0, fmt.Errorf("natstransport: malformed envelope")
		}
		r = r[n:]
		return v, nil
	}

	s, err := readUvarint()
	if err != nil {
		return 0, 0, nil, err
	}
	tg, err := readUvarint()
	if err != nil {
		return 0, 0, nil, err
	}
	n, err := readUvarint()
	if err != nil {
		return 0, 0, nil, err
	}

	body = make([]uint64, n)
	for i := range body {
		v, err := readUvarint()
		if err != nil {
			return 0, 0, nil, err
		}
		body[i] = v
	}

	return int(s), int(tg), body, nil
}
