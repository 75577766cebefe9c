package chantransport

import (
	"context"
	"testing"
	"time"

	"github.com/efficomp/hpknn/pkg/transport"
)

func TestSendReceivePointToPoint(t *testing.T) {
	w := NewWorld(2)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Rank(0).Send(ctx, 1, 7, []uint64{1, 2, 3}); err != nil {
		t.Fatalf("send: %v", err)
	}

	env, err := w.Rank(1).Receive(ctx, 0, 7)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if env.Source != 0 || env.Tag != 7 {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if len(env.Body) != 3 || env.Body[0] != 1 || env.Body[2] != 3 {
		t.Errorf("unexpected body: %v", env.Body)
	}
}

func TestProbeDoesNotConsume(t *testing.T) {
	w := NewWorld(2)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Rank(0).Send(ctx, 1, 3, nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := w.Rank(1).Probe(ctx, transport.AnyRank, transport.AnyTag); err != nil {
		t.Fatalf("probe: %v", err)
	}
	env, err := w.Rank(1).Receive(ctx, transport.AnyRank, transport.AnyTag)
	if err != nil {
		t.Fatalf("receive after probe: %v", err)
	}
	if env.Tag != 3 {
		t.Errorf("expected the probed message to still be receivable, got tag %d", env.Tag)
	}
}

func TestWildcardSourceAndTag(t *testing.T) {
	w := NewWorld(3)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Rank(2).Send(ctx, 0, 9, []uint64{42}); err != nil {
		t.Fatalf("send: %v", err)
	}

	env, err := w.Rank(0).Receive(ctx, transport.AnyRank, transport.AnyTag)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if env.Source != 2 || env.Tag != 9 || env.Body[0] != 42 {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestBarrierReleasesAllRanks(t *testing.T) {
	w := NewWorld(3)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan int, 3)
	for r := 0; r < 3; r++ {
		go func(r int) {
			w.Rank(r).Barrier(ctx)
			done <- r
		}(r)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("barrier did not release all ranks in time")
		}
	}
}

func TestReceiveBlocksUntilContextCancelled(t *testing.T) {
	w := NewWorld(1)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := w.Rank(0).Receive(ctx, transport.AnyRank, transport.AnyTag)
	if err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}
