package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegisterRejectsDuplicate(t *testing.T) {
	t.Parallel()
	r := New()
	h1, _ := NewHandle(context.Background())
	h2, _ := NewHandle(context.Background())
	if err := r.Register(1, h1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(1, h2); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestCancelAndForget(t *testing.T) {
	t.Parallel()
	r := New()
	h, ctx := NewHandle(context.Background())
	_ = r.Register(7, h)

	if err := r.CancelAndForget(7); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("task context not cancelled")
	}
	if r.Contains(7) {
		t.Fatalf("entry not removed")
	}
	if err := r.CancelAndForget(7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second cancel err = %v", err)
	}
}

func TestForgetRequiresSameHandle(t *testing.T) {
	t.Parallel()
	r := New()
	h, ctx := NewHandle(context.Background())
	other, _ := NewHandle(context.Background())
	_ = r.Register(2, h)

	if err := r.Forget(2, other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign handle err = %v", err)
	}
	if err := r.Forget(2, h); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("Forget must not cancel")
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	r := New()
	var ctxs []context.Context
	for _, id := range []uint16{3, 1, 2} {
		h, ctx := NewHandle(context.Background())
		ctxs = append(ctxs, ctx)
		_ = r.Register(id, h)
	}
	ids := r.CancelAll()
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("ids = %v", ids)
	}
	for i, ctx := range ctxs {
		if ctx.Err() == nil {
			t.Fatalf("ctx %d not cancelled", i)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("registry not cleared")
	}
}

func TestForgetAndCancelRaceHasOneWinner(t *testing.T) {
	t.Parallel()
	for i := 0; i < 200; i++ {
		r := New()
		h, _ := NewHandle(context.Background())
		_ = r.Register(1, h)

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if r.Forget(1, h) == nil {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if r.CancelAndForget(1) == nil {
				wins.Add(1)
			}
		}()
		wg.Wait()
		if wins.Load() != 1 {
			t.Fatalf("iteration %d: %d winners", i, wins.Load())
		}
	}
}

func TestHandleExited(t *testing.T) {
	t.Parallel()
	h, _ := NewHandle(context.Background())
	h.Exited()
	h.Exited()
	select {
	case <-h.Done():
	default:
		t.Fatalf("Done not closed")
	}
}
