package workflow

import (
	"github.com/shopspring/decimal"
)

var contractMultiplier = decimal.NewFromInt(100)

// KellySizer 按账户权益的固定比例决定单笔投入。
type KellySizer struct {
	Fraction decimal.Decimal // 默认 0.10
}

func (s KellySizer) fraction() decimal.Decimal {
	if s.Fraction.IsPositive() {
		return s.Fraction
	}
	return decimal.RequireFromString("0.10")
}

// Budget 本笔交易的现金上限 = fraction × equity。
func (s KellySizer) Budget(equity decimal.Decimal) decimal.Decimal {
	return s.fraction().Mul(equity)
}

// Quantity 按预估价差成本折算的张数：floor(budget / (cost × 100))。
// 成本非正（异常报价）或一张都买不起时返回 0，调用方跳过该标的。
func (s KellySizer) Quantity(equity, spreadCost decimal.Decimal) int {
	if !spreadCost.IsPositive() {
		return 0
	}
	unit := spreadCost.Mul(contractMultiplier)
	return int(s.Budget(equity).Div(unit).IntPart())
}
