package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Side 订单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PositionIntent 开平仓意图（券商多腿下单必填）。
type PositionIntent string

const (
	IntentBuyToOpen   PositionIntent = "buy_to_open"
	IntentSellToOpen  PositionIntent = "sell_to_open"
	IntentBuyToClose  PositionIntent = "buy_to_close"
	IntentSellToClose PositionIntent = "sell_to_close"
)

// Leg 多腿订单中的一条腿。构造后不再修改。
type Leg struct {
	Symbol string // OCC 合约代码
	Side   Side
	Intent PositionIntent
}

// Spread 日历价差：卖近月、买远月，同一行权价。
// Short/Long 指的是合约到期远近，不是持仓方向。
type Spread struct {
	Underlying string
	Short      Leg
	Long       Leg
}

// Legs 按固定顺序返回两条腿（short 在前）。
func (s Spread) Legs() []Leg {
	return []Leg{s.Short, s.Long}
}

// Quote 单个合约的最新买卖报价。只保证是最近一次成功抓取的值。
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Valid 报价可用：ask > 0 且 ask >= bid >= 0。
func (q Quote) Valid() bool {
	return q.Ask.IsPositive() && !q.Bid.IsNegative() && q.Ask.GreaterThanOrEqual(q.Bid)
}

// Mid 中间价。
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// Width 买卖价差宽度。
func (q Quote) Width() decimal.Decimal {
	return q.Ask.Sub(q.Bid)
}

// OrderStatus 券商侧订单状态。
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusAccepted        OrderStatus = "accepted"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusExpired         OrderStatus = "expired"
	StatusRejected        OrderStatus = "rejected"
	StatusPendingCancel   OrderStatus = "pending_cancel"
)

// Terminal 是否终态（不再变化、不可撤销）。
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// OrderSnapshot 一次查询返回的订单快照。
type OrderSnapshot struct {
	ID             string
	ClientOrderID  string
	Status         OrderStatus
	FilledQty      int
	FilledAvgPrice decimal.Decimal
	Commission     decimal.Decimal
}

// OrderRequest 限价多腿订单请求，time_in_force 固定为 day。
type OrderRequest struct {
	Spread        Spread
	Quantity      int
	LimitPrice    decimal.Decimal // 负数表示净收款（credit）
	ClientOrderID string
}

var (
	// ErrQuoteUnavailable 报价缺失（bid 或 ask 不存在）。
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrOrderNotCancelable 撤单时订单已处于终态；对调用方视同撤单成功。
	ErrOrderNotCancelable = errors.New("order no longer cancelable")
)

// OrderGateway 券商下单通道。
type OrderGateway interface {
	Submit(ctx context.Context, req OrderRequest) (OrderSnapshot, error)
	GetOrder(ctx context.Context, orderID string) (OrderSnapshot, error)
	// Cancel 对已终态订单返回 ErrOrderNotCancelable。
	Cancel(ctx context.Context, orderID string) error
}

// QuoteSource 合约报价来源。报价缺失时返回 ErrQuoteUnavailable。
type QuoteSource interface {
	LatestQuote(ctx context.Context, symbol string) (Quote, error)
}

// AccountReader 账户权益查询（组合预算上限计算用）。
type AccountReader interface {
	Equity(ctx context.Context) (decimal.Decimal, error)
}
