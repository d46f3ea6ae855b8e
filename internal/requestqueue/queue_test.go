package requestqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDoRunsTask(t *testing.T) {
	q := New(time.Millisecond)

	ran := false
	err := q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Error("task did not run")
	}
}

func TestMinimumSpacingBetweenDispatches(t *testing.T) {
	spacing := 50 * time.Millisecond
	q := New(spacing)

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
				mu.Lock()
				stamps = append(stamps, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if len(stamps) != 3 {
		t.Fatalf("ran %d tasks, want 3", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < spacing-5*time.Millisecond {
			t.Errorf("gap between dispatch %d and %d was %s, want >= %s", i-1, i, gap, spacing)
		}
	}
}

func TestHighPriorityJumpsQueue(t *testing.T) {
	q := New(time.Millisecond)

	var mu sync.Mutex
	var order []string

	release := make(chan struct{})
	var wg sync.WaitGroup

	// Occupy the drain loop so the next two tasks queue up behind it
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
			<-release
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond) // let the first task start

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "normal")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond) // ensure the normal task is queued first

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Do(context.Background(), PriorityHigh, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "high")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)

	if n := q.Len(); n != 2 {
		t.Errorf("queued tasks = %d, want 2 while the first task blocks", n)
	}

	close(release)
	wg.Wait()

	if n := q.Len(); n != 0 {
		t.Errorf("queued tasks after drain = %d, want 0", n)
	}

	want := []string{"first", "high", "normal"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestTaskErrorIsIsolated(t *testing.T) {
	q := New(time.Millisecond)
	boom := errors.New("boom")

	if err := q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Errorf("first task error = %v, want boom", err)
	}

	// The queue keeps draining after a task failure
	if err := q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("second task error = %v, want nil", err)
	}
}

func TestTaskPanicIsRecovered(t *testing.T) {
	q := New(time.Millisecond)

	err := q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
		panic("kaboom")
	})
	if err == nil {
		t.Fatal("expected error from panicking task")
	}

	if err := q.Do(context.Background(), PriorityNormal, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("queue did not survive panic: %v", err)
	}
}

func TestAbandonedTaskIsSkipped(t *testing.T) {
	q := New(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := q.Do(ctx, PriorityNormal, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err == nil {
		t.Fatal("expected context error for abandoned task")
	}
	if ran {
		t.Error("cancelled task should not have run")
	}
}
