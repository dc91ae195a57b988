package cmn

import (
	"sync"
	"testing"
	"time"
)

func TestTimeoutGroupSmoke(t *testing.T) {
	wg := NewTimeoutGroup()
	wg.Add(1)
	wg.Done()
	if wg.WaitTimeout(time.Second) {
		t.Error("wait timed out")
	}
}

func TestTimeoutGroupWait(t *testing.T) {
	wg := NewTimeoutGroup()
	wg.Add(2)
	wg.Done()
	wg.Done()
	wg.Wait()
}

func TestTimeoutGroupGoroutines(t *testing.T) {
	wg := NewTimeoutGroup()

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			time.Sleep(10 * time.Millisecond)
			wg.Done()
		}()
	}

	if wg.WaitTimeout(time.Second) {
		t.Error("wait timed out")
	}
}

func TestTimeoutGroupTimeout(t *testing.T) {
	wg := NewTimeoutGroup()
	wg.Add(1)

	go func() {
		time.Sleep(300 * time.Millisecond)
		wg.Done()
	}()

	if !wg.WaitTimeout(50 * time.Millisecond) {
		t.Error("group did not time out")
	}

	if wg.WaitTimeout(time.Second) { // now wait for actual end of the job
		t.Error("group timed out")
	}
}

func TestTimeoutGroupStop(t *testing.T) {
	wg := NewTimeoutGroup()
	wg.Add(1)

	go func() {
		time.Sleep(300 * time.Millisecond)
		wg.Done()
	}()

	if !wg.WaitTimeout(50 * time.Millisecond) {
		t.Error("group did not time out")
	}

	stopCh := make(chan struct{}, 1)
	stopCh <- struct{}{}

	timed, stopped := wg.WaitTimeoutWithStop(50*time.Millisecond, stopCh)
	if timed {
		t.Error("group should not time out")
	}
	if !stopped {
		t.Error("group should be stopped")
	}

	if timed, stopped = wg.WaitTimeoutWithStop(time.Second, stopCh); timed || stopped {
		t.Error("group timed out or was stopped on finish")
	}
}

func TestTimeoutGroupStopAndTimeout(t *testing.T) {
	wg := NewTimeoutGroup()
	wg.Add(1)

	go func() {
		time.Sleep(300 * time.Millisecond)
		wg.Done()
	}()

	stopCh := make(chan struct{}, 1)
	timed, stopped := wg.WaitTimeoutWithStop(50*time.Millisecond, stopCh)
	if !timed {
		t.Error("group should time out")
	}
	if stopped {
		t.Error("group should not be stopped")
	}

	if timed, stopped = wg.WaitTimeoutWithStop(time.Second, stopCh); timed || stopped {
		t.Error("group timed out or was stopped on finish")
	}
}

func TestDynSemaphore(t *testing.T) {
	limit := 10

	sema := NewDynSemaphore(limit)

	var mu sync.Mutex
	var cur, max int
	wg := &sync.WaitGroup{}

	for j := 0; j < 10*limit; j++ {
		sema.Acquire()
		wg.Add(1)
		go func() {
			mu.Lock()
			cur++
			if cur > max {
				max = cur
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			cur--
			mu.Unlock()

			sema.Release()
			wg.Done()
		}()
	}

	wg.Wait()

	if max != limit {
		t.Fatalf("observed concurrency %d, expected %d", max, limit)
	}
}
