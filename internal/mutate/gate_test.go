package mutate

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func newTestGate() *Gate {
	return NewGate(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOverlappingMutationDropped(t *testing.T) {
	gate := newTestGate()

	var secondRan bool
	ran, err := gate.Do("veh-1", func() error {
		inner, err := gate.Do("veh-1", func() error {
			secondRan = true
			return nil
		})
		if err != nil {
			t.Fatalf("inner: %v", err)
		}
		if inner {
			t.Fatal("expected overlapping mutation to be dropped")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer: %v", err)
	}
	if !ran {
		t.Fatal("expected outer mutation to run")
	}
	if secondRan {
		t.Fatal("overlapping mutation body must not run")
	}
}

func TestGateReleasesAfterError(t *testing.T) {
	gate := newTestGate()
	boom := errors.New("boom")

	ran, err := gate.Do("veh-1", func() error { return boom })
	if !ran || !errors.Is(err, boom) {
		t.Fatalf("expected error surfaced, ran=%v err=%v", ran, err)
	}
	if gate.Busy("veh-1") {
		t.Fatal("expected slot released after failure")
	}

	ran, err = gate.Do("veh-1", func() error { return nil })
	if !ran || err != nil {
		t.Fatalf("expected retry to run, ran=%v err=%v", ran, err)
	}
}

func TestGateDistinguishesEntities(t *testing.T) {
	gate := newTestGate()

	ran, err := gate.Do("veh-1", func() error {
		inner, err := gate.Do("veh-2", func() error { return nil })
		if err != nil {
			t.Fatalf("inner: %v", err)
		}
		if !inner {
			t.Fatal("expected a different entity to run concurrently")
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("outer: ran=%v err=%v", ran, err)
	}
}

func TestGateIgnoresBlankID(t *testing.T) {
	gate := newTestGate()
	ran, err := gate.Do("  ", func() error { return nil })
	if ran || err != nil {
		t.Fatalf("expected blank id ignored, ran=%v err=%v", ran, err)
	}
}
