package execution

import (
	"fmt"
	"sync"
	"time"

	"calendar-trader-go/infrastructure/logger"
)

// FillSink 成交汇总的消费方（写日志本、发告警等）。
type FillSink interface {
	OnFill(summary *TradeFillSummary)
}

// AsyncNotifier 把成交通知派发到后台执行，不阻塞下一轮追价。
// 所有派发出去的任务可通过 Wait 汇合；panic 被捕获并记录，
// 不会拖垮交易主流程。
type AsyncNotifier struct {
	Log *logger.Logger

	wg sync.WaitGroup
}

// NotifyFill 后台调用 sink.OnFill。summary 为 nil（零成交）时不派发。
func (n *AsyncNotifier) NotifyFill(summary *TradeFillSummary, sink FillSink) {
	if summary == nil || sink == nil {
		return
	}
	n.Go("fill_notify", func() {
		sink.OnFill(summary)
	})
}

// Go 在后台执行 fn。
func (n *AsyncNotifier) Go(name string, fn func()) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.log().LogError(fmt.Errorf("notifier %s panicked: %v", name, r), nil)
			}
		}()
		fn()
	}()
}

// Wait 等待所有在途通知完成。
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}

// WaitTimeout 带超时的 Wait。超时返回 false 并记日志，任务仍在后台跑完。
func (n *AsyncNotifier) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		n.log().Warn("notifier wait timed out, tasks left running")
		return false
	}
}

func (n *AsyncNotifier) log() *logger.Logger {
	if n.Log != nil {
		return n.Log
	}
	return logger.Nop()
}
