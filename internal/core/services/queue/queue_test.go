package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/distbuild.net/internal/domain"
)

func TestPopIsLastInFirstOut(t *testing.T) {
	q := NewTaskQueue()
	q.Push("a")
	q.Push("b")

	task, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, domain.Task("b"), task)

	task, ok = q.TryPop()
	require.True(t, ok)
	require.Equal(t, domain.Task("a"), task)

	_, ok = q.TryPop()
	require.False(t, ok)
	require.Zero(t, q.Len())
}

func TestSeededQueue(t *testing.T) {
	q := NewTaskQueue("a.c", "b.c")
	require.Equal(t, 2, q.Len())
	require.True(t, q.Contains("a.c"))
	require.False(t, q.Contains("c.c"))
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewTaskQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan domain.Task, 1)
	go func() {
		task, err := q.Pop(ctx)
		if err == nil {
			got <- task
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push("late.c")

	select {
	case task := <-got:
		require.Equal(t, domain.Task("late.c"), task)
	case <-ctx.Done():
		t.Fatal("Pop did not observe the push")
	}
}

func TestPopHonoursContext(t *testing.T) {
	q := NewTaskQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseDrainsThenFails(t *testing.T) {
	q := NewTaskQueue("a.c")
	q.Close()

	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.Task("a.c"), task)

	_, err = q.Pop(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseWakesBlockedPoppers(t *testing.T) {
	q := NewTaskQueue()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, ErrClosed)
	}
}

func TestConcurrentConsumersClaimEachTaskOnce(t *testing.T) {
	q := NewTaskQueue()
	for i := 0; i < 200; i++ {
		q.Push(domain.Task(string(rune('a'+i%26)) + time.Duration(i).String()))
	}
	q.Close()

	var mu sync.Mutex
	seen := make(map[domain.Task]int)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := q.Pop(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[task]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 200)
	for _, n := range seen {
		require.Equal(t, 1, n)
	}
}
