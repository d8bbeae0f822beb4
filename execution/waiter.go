package execution

import (
	"context"
	"fmt"
	"time"

	"calendar-trader-go/gateway"
)

// FillObserver 等待订单出现非零成交。
// 合同：任何 filled qty > 0 即视为成功返回当前快照（不要求全额成交）；
// 超时返回最后一次快照和 ErrFillTimeout，撤单由调用方负责。
type FillObserver interface {
	Await(ctx context.Context, orderID string, timeout time.Duration) (gateway.OrderSnapshot, error)
}

// OrderFetcher 订单状态查询（OrderGateway 的只读子集）。
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (gateway.OrderSnapshot, error)
}

// PollingObserver 轮询式实现：按固定间隔查单。
type PollingObserver struct {
	Fetcher  OrderFetcher
	Interval time.Duration // 默认 1s
}

func (p *PollingObserver) Await(ctx context.Context, orderID string, timeout time.Duration) (gateway.OrderSnapshot, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last gateway.OrderSnapshot
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, fmt.Errorf("%w: order %s after %s", ErrFillTimeout, orderID, timeout)
		case <-ticker.C:
			snap, err := p.Fetcher.GetOrder(ctx, orderID)
			if err != nil {
				// 单次查询失败不终止等待，下一个 tick 重试
				continue
			}
			last = snap
			if snap.FilledQty > 0 {
				return snap, nil
			}
		}
	}
}

// FillFeed 推送式成交来源（如券商 trade_updates 流）。
type FillFeed interface {
	Subscribe(orderID string) (<-chan gateway.OrderSnapshot, func())
}

// StreamObserver 推送式实现：订阅成交流，收到非零成交即返回。
// 替换 PollingObserver 不改变状态机的任何行为。
type StreamObserver struct {
	Feed FillFeed
}

func (s *StreamObserver) Await(ctx context.Context, orderID string, timeout time.Duration) (gateway.OrderSnapshot, error) {
	ch, cancel := s.Feed.Subscribe(orderID)
	defer cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var last gateway.OrderSnapshot
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, fmt.Errorf("%w: order %s after %s", ErrFillTimeout, orderID, timeout)
		case snap := <-ch:
			last = snap
			if snap.FilledQty > 0 {
				return snap, nil
			}
		}
	}
}
