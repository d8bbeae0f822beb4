package execution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"calendar-trader-go/gateway"
)

// minTick 期权限价最小步进（一美分）。
var minTick = decimal.RequireFromString("0.01")

// Ladder 一次追价的价格阶梯：起点、步长、边界。
// 价格统一采用净支出（debit）符号约定：负数表示净收款（credit）。
// 在该约定下开仓与平仓的行进方向都是向上（出价越来越高）。
type Ladder struct {
	Start     decimal.Decimal
	Step      decimal.Decimal
	Bound     decimal.Decimal // 可接受的最差价格，含边界本身
	Direction int             // +1，保留字段以防未来出现反向阶梯
}

// stepSize 步长 = max(0.01, 两腿买卖价差宽度之和的一半)。
// 市场越宽追得越快，窄市场按最小 tick 爬。
func stepSize(short, long gateway.Quote) decimal.Decimal {
	half := short.Width().Add(long.Width()).Div(decimal.NewFromInt(2))
	if half.LessThan(minTick) {
		return minTick
	}
	return half
}

func validateQuotes(short, long gateway.Quote) error {
	if !short.Valid() {
		return fmt.Errorf("%w: short leg bid=%s ask=%s", gateway.ErrQuoteUnavailable, short.Bid, short.Ask)
	}
	if !long.Valid() {
		return fmt.Errorf("%w: long leg bid=%s ask=%s", gateway.ErrQuoteUnavailable, long.Bid, long.Ask)
	}
	return nil
}

// NewOpenLadder 开仓（净支出）阶梯：
// 起点 = 远月中间价 - 近月中间价；边界 = 远月 ask
// （按 ask 买远月、只收近月 bid，是可接受的经济最差情形）。
func NewOpenLadder(short, long gateway.Quote) (Ladder, error) {
	if err := validateQuotes(short, long); err != nil {
		return Ladder{}, err
	}
	return Ladder{
		Start:     long.Mid().Sub(short.Mid()),
		Step:      stepSize(short, long),
		Bound:     long.Ask,
		Direction: 1,
	}, nil
}

// NewCloseLadder 平仓（求最优收款）阶梯：
// 起点 = -(远月 ask - 近月 bid)，即以最乐观的 credit 报价；
// 价格逐档上移（收款变少直至净支出），边界 = 近月 ask 的 debit 上限。
func NewCloseLadder(short, long gateway.Quote) (Ladder, error) {
	if err := validateQuotes(short, long); err != nil {
		return Ladder{}, err
	}
	return Ladder{
		Start:     long.Ask.Sub(short.Bid).Neg(),
		Step:      stepSize(short, long),
		Bound:     short.Ask,
		Direction: 1,
	}, nil
}

// Next 下一档价格。
func (l Ladder) Next(price decimal.Decimal) decimal.Decimal {
	return price.Add(l.Step.Mul(decimal.NewFromInt(int64(l.Direction))))
}

// Crossed 价格越过边界（严格超出；边界本身仍可下单）。
func (l Ladder) Crossed(price decimal.Decimal) bool {
	if l.Direction >= 0 {
		return price.GreaterThan(l.Bound)
	}
	return price.LessThan(l.Bound)
}
