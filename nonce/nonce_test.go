package nonce

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSequencer_MonotonicWithStalledClock(t *testing.T) {
	s := NewSequencerWithClock(fixedClock(1700000000000))
	assert.Equal(t, uint64(1700000000000), s.Next())
	assert.Equal(t, uint64(1700000000001), s.Next())
	assert.Equal(t, uint64(1700000000002), s.Next())
	assert.Equal(t, uint64(1700000000002), s.Last())
}

func TestSequencer_ClockGoingBackwards(t *testing.T) {
	now := int64(2000)
	s := NewSequencerWithClock(func() time.Time { return time.UnixMilli(now) })
	assert.Equal(t, uint64(2000), s.Next())
	now = 1000
	assert.Equal(t, uint64(2001), s.Next())
	now = 5000
	assert.Equal(t, uint64(5000), s.Next())
}

func TestSequencer_ConcurrentUnique(t *testing.T) {
	s := NewSequencerWithClock(fixedClock(1))
	const n = 500

	var mu sync.Mutex
	var got []uint64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := s.Next()
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i := 1; i < len(got); i++ {
		require.Equal(t, got[i-1]+1, got[i])
	}
}

func TestQueues_FIFO(t *testing.T) {
	q := NewQueues()
	ctx := context.Background()

	first, err := q.Acquire(ctx, "0xABC")
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, err := q.Acquire(ctx, "0xabc")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}(i)
		// wait until the goroutine is enqueued so arrival order is fixed
		require.Eventually(t, func() bool { return q.Pending("0xabc") == i+1 }, time.Second, time.Millisecond)
	}

	first()
	wg.Wait()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestQueues_CancelWhileWaiting(t *testing.T) {
	q := NewQueues()
	release, err := q.Acquire(context.Background(), "alice")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Acquire(ctx, "alice")
		done <- err
	}()
	require.Eventually(t, func() bool { return q.Pending("alice") == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, q.Pending("alice"))

	release()
	assert.Equal(t, 0, q.Len())

	// a fresh acquire does not block behind the cancelled waiter
	again, err := q.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	again()
}

func TestQueues_IdentitiesIndependent(t *testing.T) {
	q := NewQueues()
	a, err := q.Acquire(context.Background(), "a")
	require.NoError(t, err)
	b, err := q.Acquire(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
	a()
	b()
	assert.Equal(t, 0, q.Len())
}

func TestQueues_ReleaseIsIdempotent(t *testing.T) {
	q := NewQueues()
	release, err := q.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	release()
	assert.Equal(t, 0, q.Len())
}

func TestManager_SubmissionOrderFollowsNonceOrder(t *testing.T) {
	m := NewManager(NewSequencerWithClock(fixedClock(1700000000000)), zaptest.NewLogger(t))

	var mu sync.Mutex
	var submitted []uint64
	started := make(chan struct{})
	unblock := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := m.Do(context.Background(), "0xAA", func(_ context.Context, n uint64) error {
			close(started)
			<-unblock // slow signer
			mu.Lock()
			submitted = append(submitted, n)
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}()
	<-started
	go func() {
		defer wg.Done()
		err := m.Do(context.Background(), "0xaa", func(_ context.Context, n uint64) error {
			mu.Lock()
			submitted = append(submitted, n)
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return m.Queues().Pending("0xaa") == 2 }, time.Second, time.Millisecond)

	close(unblock)
	wg.Wait()
	assert.Equal(t, []uint64{1700000000000, 1700000000001}, submitted)
}

func TestManager_ErrorReleasesTurn(t *testing.T) {
	m := NewManager(nil, nil)
	boom := errors.New("rejected")
	err := m.Do(context.Background(), "x", func(context.Context, uint64) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = m.Do(context.Background(), "x", func(context.Context, uint64) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, 0, m.Queues().Len())
}

func TestManager_Options(t *testing.T) {
	m := NewManager(NewSequencerWithClock(fixedClock(10)), zaptest.NewLogger(t))

	release, err := m.Queues().Acquire(context.Background(), "leader")
	require.NoError(t, err)
	defer release()

	// the queue is held, so only an unqueued call can proceed
	var got uint64
	err = m.Do(context.Background(), "leader", func(_ context.Context, n uint64) error {
		got = n
		return nil
	}, WithoutQueue(), WithNonce(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)
	assert.Equal(t, uint64(0), m.Sequencer().Last())

	err = m.Do(context.Background(), "leader", func(_ context.Context, n uint64) error {
		got = n
		return nil
	}, WithoutQueue())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got)
}

func TestManager_CancelledBeforeTurnConsumesNoNonce(t *testing.T) {
	m := NewManager(NewSequencerWithClock(fixedClock(10)), nil)
	release, err := m.Queues().Acquire(context.Background(), "x")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = m.Do(ctx, "x", func(context.Context, uint64) error {
		t.Fatal("must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(0), m.Sequencer().Last())
}
