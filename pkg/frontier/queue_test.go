package frontier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Push("a", "b"))
	q.Push("c")
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, q.InFlight())
}

func TestQueueEmptyWithNothingInFlight(t *testing.T) {
	q := NewQueue()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueuePopWaitsForInFlight(t *testing.T) {
	q := NewQueue()
	q.Push("seed")
	_, ok := q.Pop()
	require.True(t, ok)

	got := make(chan string, 1)
	go func() {
		k, ok := q.Pop()
		if ok {
			got <- k
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("Pop returned while work was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	q.Push("child")
	q.Done()
	assert.Equal(t, "child", <-got)
}

func TestQueueTerminatesWhenLastWorkerFinishes(t *testing.T) {
	q := NewQueue()
	q.Push("only")
	_, ok := q.Pop()
	require.True(t, ok)

	done := make(chan bool)
	for i := 0; i < 3; i++ {
		go func() {
			_, ok := q.Pop()
			done <- ok
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.Done()

	for i := 0; i < 3; i++ {
		select {
		case ok := <-done:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("waiter not released")
		}
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	q.Push("a")
	_, _ = q.Pop()

	released := make(chan struct{})
	go func() {
		_, ok := q.Pop()
		assert.False(t, ok)
		close(released)
	}()
	q.Close()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake waiter")
	}
	assert.False(t, q.Push("b"))
	_, ok := q.Pop()
	assert.False(t, ok, "a closed queue hands out nothing")
}
