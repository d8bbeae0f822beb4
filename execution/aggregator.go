package execution

import (
	"github.com/shopspring/decimal"

	"calendar-trader-go/gateway"
)

// TradeFillSummary 一次逻辑交易跨所有价格档的成交汇总。
// 只有累计成交量 > 0 时才会产生；"没成交"对应 nil，而不是零值汇总。
type TradeFillSummary struct {
	OrderID        string // 代表性订单号（首个有成交的档）
	ShortSymbol    string
	LongSymbol     string
	RequestedQty   int
	FilledQty      int
	AvgFillPrice   decimal.Decimal // 数量加权平均
	Commission     decimal.Decimal
	NotionalOutlay decimal.Decimal // 总净支出（price × qty × 100 合计，credit 为负）
}

// fillAggregator 跨档累计成交量、名义金额和佣金。
// 由追价循环独占持有，不做并发保护。
type fillAggregator struct {
	spread    gateway.Spread
	requested int

	filledQty  int
	notional   decimal.Decimal // sum(price_i × qty_i)
	commission decimal.Decimal
	orderID    string
}

func newFillAggregator(spread gateway.Spread, requested int) *fillAggregator {
	return &fillAggregator{spread: spread, requested: requested}
}

// record 记入一档成交。qty 为本档实际成交数量。
func (a *fillAggregator) record(snap gateway.OrderSnapshot, qty int) {
	if qty <= 0 {
		return
	}
	a.filledQty += qty
	a.notional = a.notional.Add(snap.FilledAvgPrice.Mul(decimal.NewFromInt(int64(qty))))
	a.commission = a.commission.Add(snap.Commission)
	if a.orderID == "" {
		a.orderID = snap.ID
	}
}

// summary 产出最终汇总；零成交返回 nil。
func (a *fillAggregator) summary() *TradeFillSummary {
	if a.filledQty == 0 {
		return nil
	}
	qty := decimal.NewFromInt(int64(a.filledQty))
	return &TradeFillSummary{
		OrderID:        a.orderID,
		ShortSymbol:    a.spread.Short.Symbol,
		LongSymbol:     a.spread.Long.Symbol,
		RequestedQty:   a.requested,
		FilledQty:      a.filledQty,
		AvgFillPrice:   a.notional.Div(qty),
		Commission:     a.commission,
		NotionalOutlay: a.notional.Mul(contractMultiplier),
	}
}

// contractMultiplier 一张期权合约对应 100 股。
var contractMultiplier = decimal.NewFromInt(100)
