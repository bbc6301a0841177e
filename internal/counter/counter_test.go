package counter

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestIncrementDecrement(t *testing.T) {
	s := NewStore(newLogger())

	if got := s.Increment("s1"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := s.Increment("s1"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := s.Decrement("s1"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := s.Get("s1"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := s.Get("unknown"); got != 0 {
		t.Fatalf("expected 0 for unknown session, got %d", got)
	}
}

func TestDecrementClampsAtZero(t *testing.T) {
	s := NewStore(newLogger())

	if got := s.Decrement("s1"); got != 0 {
		t.Fatalf("expected clamp at 0, got %d", got)
	}
	s.Increment("s1")
	s.Decrement("s1")
	if got := s.Decrement("s1"); got != 0 {
		t.Fatalf("expected clamp at 0, got %d", got)
	}
}

func TestConcurrentConvergesToNetSum(t *testing.T) {
	s := NewStore(newLogger())
	const workers = 32
	const perWorker = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.Increment("s1")
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker/2; j++ {
				s.Decrement("s1")
			}
		}()
	}
	wg.Wait()

	want := int64(workers*perWorker - workers*perWorker/2)
	if got := s.Get("s1"); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestGetNeverNegativeUnderConcurrency(t *testing.T) {
	s := NewStore(newLogger())
	done := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		for {
			select {
			case <-done:
				return
			default:
				if s.Get("s1") < 0 {
					t.Error("observed negative count")
					return
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Increment("s1")
				s.Decrement("s1")
				s.Decrement("s1")
			}
		}()
	}
	wg.Wait()
	close(done)
	<-readerDone
}

func TestRemoveResetsSession(t *testing.T) {
	s := NewStore(newLogger())
	s.Increment("s1")
	s.Remove("s1")
	if got := s.Get("s1"); got != 0 {
		t.Fatalf("expected 0 after remove, got %d", got)
	}
}
