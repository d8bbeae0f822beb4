package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"calendar-trader-go/gateway"
)

// seqFetcher 按调用次数依次返回快照，超出脚本后重复最后一个。
type seqFetcher struct {
	mu    sync.Mutex
	snaps []gateway.OrderSnapshot
	errs  []error
	calls int
}

func (f *seqFetcher) GetOrder(_ context.Context, orderID string) (gateway.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return gateway.OrderSnapshot{}, f.errs[i]
	}
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	return f.snaps[i], nil
}

func TestPollingObserverReturnsOnFirstFill(t *testing.T) {
	f := &seqFetcher{snaps: []gateway.OrderSnapshot{
		{ID: "o1", Status: gateway.StatusAccepted},
		{ID: "o1", Status: gateway.StatusPartiallyFilled, FilledQty: 1, FilledAvgPrice: decimal.RequireFromString("1.20")},
	}}
	p := &PollingObserver{Fetcher: f, Interval: 5 * time.Millisecond}

	snap, err := p.Await(context.Background(), "o1", time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, snap.FilledQty)
	// 部分成交即返回，不等全额
	require.Equal(t, gateway.StatusPartiallyFilled, snap.Status)
}

func TestPollingObserverTimeoutReturnsLastSnapshot(t *testing.T) {
	f := &seqFetcher{snaps: []gateway.OrderSnapshot{
		{ID: "o1", Status: gateway.StatusAccepted},
	}}
	p := &PollingObserver{Fetcher: f, Interval: 5 * time.Millisecond}

	snap, err := p.Await(context.Background(), "o1", 30*time.Millisecond)
	require.ErrorIs(t, err, ErrFillTimeout)
	require.Equal(t, gateway.StatusAccepted, snap.Status)
	require.Zero(t, snap.FilledQty)
}

func TestPollingObserverRetriesFetchErrors(t *testing.T) {
	f := &seqFetcher{
		errs: []error{errors.New("transient"), errors.New("transient")},
		snaps: []gateway.OrderSnapshot{
			{}, {},
			{ID: "o1", Status: gateway.StatusFilled, FilledQty: 2},
		},
	}
	p := &PollingObserver{Fetcher: f, Interval: 5 * time.Millisecond}

	snap, err := p.Await(context.Background(), "o1", time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, snap.FilledQty)
}

func TestPollingObserverContextCancel(t *testing.T) {
	f := &seqFetcher{snaps: []gateway.OrderSnapshot{{Status: gateway.StatusAccepted}}}
	p := &PollingObserver{Fetcher: f, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()
	_, err := p.Await(ctx, "o1", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

type chanFeed struct {
	ch chan gateway.OrderSnapshot
}

func (f *chanFeed) Subscribe(string) (<-chan gateway.OrderSnapshot, func()) {
	return f.ch, func() {}
}

func TestStreamObserverReturnsOnFill(t *testing.T) {
	feed := &chanFeed{ch: make(chan gateway.OrderSnapshot, 2)}
	feed.ch <- gateway.OrderSnapshot{ID: "o1", Status: gateway.StatusAccepted}
	feed.ch <- gateway.OrderSnapshot{ID: "o1", Status: gateway.StatusPartiallyFilled, FilledQty: 3}
	s := &StreamObserver{Feed: feed}

	snap, err := s.Await(context.Background(), "o1", time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, snap.FilledQty)
}

func TestStreamObserverTimeout(t *testing.T) {
	feed := &chanFeed{ch: make(chan gateway.OrderSnapshot)}
	s := &StreamObserver{Feed: feed}

	_, err := s.Await(context.Background(), "o1", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrFillTimeout)
}
