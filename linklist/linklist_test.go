package linklist

import (
	"sort"
	"sync"
	"testing"

	"code.hybscloud.com/enginecore/linkpool"
)

func TestLIFOPushPopOrder(t *testing.T) {
	pool := linkpool.New(nil)
	l := NewLIFO(pool)

	l.Push(1)
	l.Push(2)
	l.Push(3)

	for _, want := range []uintptr{3, 2, 1} {
		got, ok := l.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := l.Pop(); ok {
		t.Fatal("Pop on empty stack returned ok=true")
	}
}

func TestFIFOEnqueueDequeueOrder(t *testing.T) {
	pool := linkpool.New(nil)
	f := NewFIFO(pool)

	f.Enqueue(1)
	f.Enqueue(2)
	f.Enqueue(3)

	for _, want := range []uintptr{1, 2, 3} {
		got, ok := f.Dequeue()
		if !ok || got != want {
			t.Fatalf("Dequeue() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := f.Dequeue(); ok {
		t.Fatal("Dequeue on empty queue returned ok=true")
	}
}

func TestFIFOInterleavedEnqueueDequeue(t *testing.T) {
	pool := linkpool.New(nil)
	f := NewFIFO(pool)

	f.Enqueue(1)
	if got, _ := f.Dequeue(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	f.Enqueue(2)
	f.Enqueue(3)
	if got, _ := f.Dequeue(); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
	if got, _ := f.Dequeue(); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}

func TestSPSCEnqueueDequeueOrder(t *testing.T) {
	pool := linkpool.New(nil)
	q := NewSPSC(pool)

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(uintptr(i))
		}
	}()

	received := make([]uintptr, 0, n)
	for len(received) < n {
		if v, ok := q.Dequeue(); ok {
			received = append(received, v)
		}
	}
	wg.Wait()

	for i, v := range received {
		if v != uintptr(i) {
			t.Fatalf("received[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestClosableMPSCEnqueueFailsAfterClose(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewClosableMPSC(pool)

	c.Enqueue(1)
	c.Enqueue(2)

	var drained []uintptr
	c.Close(func(payload uintptr) { drained = append(drained, payload) })

	if !c.Closed() {
		t.Fatal("expected Closed() to be true after Close")
	}
	if ok := c.Enqueue(3); ok {
		t.Fatal("expected Enqueue after Close to fail")
	}

	want := []uintptr{1, 2}
	if len(drained) != len(want) {
		t.Fatalf("drained = %v, want %v", drained, want)
	}
	for i := range want {
		if drained[i] != want[i] {
			t.Fatalf("drained = %v, want %v", drained, want)
		}
	}
}

func TestClosableMPSCCloseIsIdempotent(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewClosableMPSC(pool)
	c.Enqueue(1)

	calls := 0
	c.Close(func(uintptr) { calls++ })
	c.Close(func(uintptr) { calls++ })

	if calls != 1 {
		t.Fatalf("consume called %d times across two Close calls, want 1", calls)
	}
}

func TestClosableMPSCConcurrentProducersExactlyOnceConsumption(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewClosableMPSC(pool)

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	var rejectedMu sync.Mutex
	var rejected []uintptr

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := uintptr(p*perProducer + i)
				if !c.Enqueue(v) {
					rejectedMu.Lock()
					rejected = append(rejected, v)
					rejectedMu.Unlock()
				}
			}
		}(p)
	}

	var accepted []uintptr
	var acceptedMu sync.Mutex
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	<-done

	c.Close(func(payload uintptr) {
		acceptedMu.Lock()
		accepted = append(accepted, payload)
		acceptedMu.Unlock()
	})

	total := len(accepted) + len(rejected)
	if total != producers*perProducer {
		t.Fatalf("accepted+rejected = %d, want %d", total, producers*perProducer)
	}

	seen := make(map[uintptr]bool, total)
	for _, v := range accepted {
		if seen[v] {
			t.Fatalf("value %d consumed more than once", v)
		}
		seen[v] = true
	}
	for _, v := range rejected {
		if seen[v] {
			t.Fatalf("value %d both consumed and rejected", v)
		}
		seen[v] = true
	}
}

func TestConsumeAllDrainFIFOOrder(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewConsumeAll(pool)

	c.Push(1)
	c.Push(2)
	c.Push(3)

	got := c.Drain(true)
	want := []uintptr{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Drain(true) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Drain(true) = %v, want %v", got, want)
		}
	}
}

func TestConsumeAllDrainLIFOOrder(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewConsumeAll(pool)

	c.Push(1)
	c.Push(2)
	c.Push(3)

	got := c.Drain(false)
	want := []uintptr{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("Drain(false) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Drain(false) = %v, want %v", got, want)
		}
	}
}

func TestConsumeAllDrainEmptyReturnsNil(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewConsumeAll(pool)
	if got := c.Drain(true); got != nil {
		t.Fatalf("Drain on empty stack = %v, want nil", got)
	}
}

func TestConsumeAllConcurrentPushDrainSeesEveryValueOnce(t *testing.T) {
	pool := linkpool.New(nil)
	c := NewConsumeAll(pool)

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.Push(uintptr(p*perProducer + i))
			}
		}(p)
	}

	var all []uintptr
	var mu sync.Mutex
	stop := make(chan struct{})
	var drainWg sync.WaitGroup
	drainWg.Add(1)
	go func() {
		defer drainWg.Done()
		for {
			select {
			case <-stop:
				if got := c.Drain(false); got != nil {
					mu.Lock()
					all = append(all, got...)
					mu.Unlock()
				}
				return
			default:
				if got := c.Drain(false); got != nil {
					mu.Lock()
					all = append(all, got...)
					mu.Unlock()
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	drainWg.Wait()

	if len(all) != producers*perProducer {
		t.Fatalf("drained %d values total, want %d", len(all), producers*perProducer)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, v := range all {
		if v != uintptr(i) {
			t.Fatalf("drained values missing or duplicated around index %d: got %d", i, v)
		}
	}
}
