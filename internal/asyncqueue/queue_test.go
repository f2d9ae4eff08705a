package asyncqueue

import (
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := New()
	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() { order = append(order, i) })
	}
	q.Enqueue(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue did not drain")
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestLockPreventsDrain(t *testing.T) {
	q := New()
	q.Lock("hold")

	ran := make(chan struct{})
	q.Enqueue(func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("job ran while queue was locked")
	case <-time.After(50 * time.Millisecond):
	}

	q.Unlock("hold")
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run after unlock")
	}
}

func TestAsyncJobWaitsForDone(t *testing.T) {
	q := New()
	var second bool
	release := make(chan struct{})

	q.EnqueueAsync(func(done func()) {
		go func() {
			<-release
			done()
		}()
	})
	q.Enqueue(func() { second = true })

	time.Sleep(50 * time.Millisecond)
	if second {
		t.Fatal("second job ran before first async job completed")
	}
	close(release)

	deadline := time.After(time.Second)
	for !second {
		select {
		case <-deadline:
			t.Fatal("second job never ran")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestPromiseResolvesWhenIdle(t *testing.T) {
	q := New()
	q.Enqueue(func() {})
	select {
	case <-q.Promise():
	case <-time.After(time.Second):
		t.Fatal("promise did not resolve")
	}
}

func TestPromiseWaitsOutAHeldLock(t *testing.T) {
	q := New()
	q.Lock("discovery")

	select {
	case <-q.Promise():
		t.Fatal("promise resolved while the queue was still locked")
	case <-time.After(50 * time.Millisecond):
	}

	q.Unlock("discovery")
	select {
	case <-q.Promise():
	case <-time.After(time.Second):
		t.Fatal("promise never resolved after unlock")
	}
}
