package systems

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewJobSystemErrors(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("err = %v", err)
	}
}

func TestJobCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 2)
	if err != nil {
		t.Fatal(err)
	}

	var completed, failed atomic.Int32
	var wg sync.WaitGroup
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		job := Job{
			Name: "job",
			Run: func(ctx context.Context) error {
				if i%4 == 0 {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1); wg.Done() },
			OnFailure: func(err error) {
				if errors.Is(err, boom) {
					failed.Add(1)
				}
				wg.Done()
			},
		}
		// the small queue forces both paths to spill
		if i%2 == 0 {
			err = js.Submit(job)
		} else {
			err = js.AddWorkNonBlocking(job)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	if completed.Load() != 15 || failed.Load() != 5 {
		t.Fatalf("completed %d, failed %d", completed.Load(), failed.Load())
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestShutdownCancelsQueuedJobs(t *testing.T) {
	js, err := NewJobSystem(1, 4)
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var ranBlocked atomic.Bool
	js.Submit(Job{Name: "blocker", Run: func(ctx context.Context) error {
		close(started)
		<-release
		ranBlocked.Store(true)
		return nil
	}})
	<-started

	canceled := make(chan error, 1)
	js.AddWorkNonBlocking(Job{
		Name:      "queued",
		Run:       func(ctx context.Context) error { t.Error("queued job ran"); return nil },
		OnFailure: func(err error) { canceled <- err },
	})

	done := make(chan struct{})
	go func() {
		js.Shutdown()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("shutdown did not wait for the running job")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done

	if !ranBlocked.Load() {
		t.Fatal("running job did not finish")
	}
	if err := <-canceled; !errors.Is(err, context.Canceled) {
		t.Fatalf("queued job failed with %v", err)
	}
	if err := js.AddWorkNonBlocking(Job{Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("add after shutdown = %v", err)
	}
	if err := js.Submit(Job{Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("submit after shutdown = %v", err)
	}
}
