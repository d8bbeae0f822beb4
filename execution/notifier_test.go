package execution

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSink struct {
	calls atomic.Int64
	last  atomic.Value
}

func (s *countingSink) OnFill(summary *TradeFillSummary) {
	s.calls.Add(1)
	s.last.Store(summary)
}

func TestAsyncNotifierDeliversAndJoins(t *testing.T) {
	n := &AsyncNotifier{}
	sink := &countingSink{}
	summary := &TradeFillSummary{OrderID: "ord-1", FilledQty: 2}

	n.NotifyFill(summary, sink)
	n.NotifyFill(summary, sink)
	n.Wait()

	require.Equal(t, int64(2), sink.calls.Load())
	require.Same(t, summary, sink.last.Load().(*TradeFillSummary))
}

func TestAsyncNotifierSkipsNilSummary(t *testing.T) {
	n := &AsyncNotifier{}
	sink := &countingSink{}
	n.NotifyFill(nil, sink)
	n.Wait()
	require.Zero(t, sink.calls.Load())
}

func TestAsyncNotifierRecoversPanic(t *testing.T) {
	n := &AsyncNotifier{}
	n.Go("boom", func() { panic("boom") })
	// Wait 正常返回说明 panic 被捕获
	n.Wait()
}

func TestAsyncNotifierWaitTimeout(t *testing.T) {
	n := &AsyncNotifier{}
	release := make(chan struct{})
	n.Go("slow", func() { <-release })

	require.False(t, n.WaitTimeout(20*time.Millisecond))
	close(release)
	require.True(t, n.WaitTimeout(time.Second))
}
