package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/scanner"
)

type fakeScanner struct {
	mu    sync.Mutex
	users []uint
	err   error
	done  chan uint
}

func (f *fakeScanner) ScanUser(_ context.Context, userID uint) (*scanner.Summary, error) {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- userID
	}
	if f.err != nil {
		return nil, f.err
	}
	return &scanner.Summary{Scanned: 1, Errors: []string{}}, nil
}

func waitFor(t *testing.T, ch <-chan uint, n int) []uint {
	t.Helper()
	var got []uint
	for len(got) < n {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d scans", len(got), n)
		}
	}
	return got
}

func TestService_ProcessesQueuedUsers(t *testing.T) {
	fs := &fakeScanner{done: make(chan uint, 10)}
	svc := NewService(fs, &Config{Workers: 2, QueueSize: 10}, logger.NewNop())
	require.NoError(t, svc.Start())
	defer func() { _ = svc.Stop() }()

	require.NoError(t, svc.Enqueue(1))
	require.NoError(t, svc.Enqueue(2))
	require.NoError(t, svc.Enqueue(3))

	got := waitFor(t, fs.done, 3)
	assert.ElementsMatch(t, []uint{1, 2, 3}, got)
}

func TestService_StartTwiceAndStopped(t *testing.T) {
	svc := NewService(&fakeScanner{}, nil, logger.NewNop())

	assert.Error(t, svc.Enqueue(1), "not running yet")
	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
	assert.Error(t, svc.Enqueue(1))
}

func TestService_QueueFull(t *testing.T) {
	started := make(chan uint)
	fs := &fakeScanner{done: started}
	svc := NewService(fs, &Config{Workers: 1, QueueSize: 1}, logger.NewNop())
	require.NoError(t, svc.Start())

	// the only worker blocks inside ScanUser(1) until started is read
	require.NoError(t, svc.Enqueue(1))
	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return len(fs.users) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Enqueue(2))
	assert.ErrorIs(t, svc.Enqueue(3), ErrQueueFull)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range started {
		}
	}()
	require.NoError(t, svc.Stop())
	close(started)
	<-drained
}

func TestService_ScanErrorsDoNotStopWorker(t *testing.T) {
	fs := &fakeScanner{done: make(chan uint, 10), err: scanner.ErrScanInProgress}
	svc := NewService(fs, &Config{Workers: 1, QueueSize: 10}, logger.NewNop())
	require.NoError(t, svc.Start())
	defer func() { _ = svc.Stop() }()

	require.NoError(t, svc.Enqueue(1))
	require.NoError(t, svc.Enqueue(2))
	assert.Equal(t, []uint{1, 2}, waitFor(t, fs.done, 2))
}

type fakeLister struct {
	ids []uint
	err error
}

func (f *fakeLister) ListUserIDsWithLinks(context.Context) ([]uint, error) {
	return f.ids, f.err
}

type fakeQueue struct {
	accepted []uint
	capacity int
}

func (q *fakeQueue) Enqueue(userID uint) error {
	if len(q.accepted) >= q.capacity {
		return ErrQueueFull
	}
	q.accepted = append(q.accepted, userID)
	return nil
}

func TestScheduler_EnqueueAll(t *testing.T) {
	q := &fakeQueue{capacity: 10}
	s := NewScheduler(&fakeLister{ids: []uint{4, 5, 6}}, q, logger.NewNop(), nil)

	n, err := s.EnqueueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint{4, 5, 6}, q.accepted)
}

func TestScheduler_EnqueueAllStopsWhenFull(t *testing.T) {
	q := &fakeQueue{capacity: 2}
	s := NewScheduler(&fakeLister{ids: []uint{1, 2, 3, 4}}, q, logger.NewNop(), nil)

	n, err := s.EnqueueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestScheduler_EnqueueAllListError(t *testing.T) {
	s := NewScheduler(&fakeLister{err: errors.New("db down")}, &fakeQueue{capacity: 1}, logger.NewNop(), nil)

	_, err := s.EnqueueAll(context.Background())
	assert.Error(t, err)
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(&fakeLister{}, &fakeQueue{}, logger.NewNop(), nil)

	assert.NoError(t, s.Register("@every 6h"))
	assert.NoError(t, s.Register("0 */6 * * *"))
	assert.Error(t, s.Register("every six hours"))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestService_DrainFinishesQueuedScans(t *testing.T) {
	fs := &fakeScanner{}
	svc := NewService(fs, &Config{Workers: 1, QueueSize: 5}, logger.NewNop())
	require.NoError(t, svc.Start())

	for _, id := range []uint{4, 5, 6} {
		require.NoError(t, svc.Enqueue(id))
	}
	svc.Drain()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, []uint{4, 5, 6}, fs.users)
	assert.Error(t, svc.Enqueue(7))
	assert.NoError(t, svc.Stop())
}
