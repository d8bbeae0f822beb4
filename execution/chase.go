package execution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"calendar-trader-go/gateway"
	"calendar-trader-go/infrastructure/logger"
	"calendar-trader-go/metrics"
	"calendar-trader-go/risk"
)

// 追价循环默认参数。
const (
	DefaultOpenWait     = 30 * time.Second
	DefaultCloseWait    = 60 * time.Second
	DefaultPollInterval = time.Second
	cleanupTimeout      = 5 * time.Second
)

// ChaseConfig 追价循环可调参数。
type ChaseConfig struct {
	OpenWait     time.Duration // 开仓单档等待
	CloseWait    time.Duration // 平仓单档等待
	PollInterval time.Duration // 轮询查单间隔
}

// Chaser 逐档限价追价执行器。
// 从阶梯起点开始逐档挂限价单；每档等一段时间，有成交就结算该档，
// 没成交就撤单推进到下一档，直到数量全部成交、价格越界或预算耗尽。
// 任一时刻最多只有一张在途订单。
type Chaser struct {
	Gateway  gateway.OrderGateway
	Quotes   gateway.QuoteSource
	Observer FillObserver         // 为空时用 PollingObserver 兜底
	Budget   *risk.BudgetReserver // 组合级共享预算，可为空
	Log      *logger.Logger
	Config   ChaseConfig
}

// ExecuteOpen 开仓追价。ceiling 为本次交易的现金上限（非组合预算），
// 为空表示不设上限。返回成交汇总；分毫未成交时返回 (nil, nil)。
func (c *Chaser) ExecuteOpen(ctx context.Context, spread gateway.Spread, qty int, ceiling *decimal.Decimal) (*TradeFillSummary, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	short, long, err := c.fetchQuotes(ctx, spread)
	if err != nil {
		return nil, err
	}
	ladder, err := NewOpenLadder(short, long)
	if err != nil {
		return nil, err
	}
	return c.chase(ctx, spread, qty, ceiling, ladder, c.openWait(), "open")
}

// ExecuteClose 平仓追价。平仓不设现金上限：先求最优 credit，
// 实在不行付出 debit 也要平掉。
func (c *Chaser) ExecuteClose(ctx context.Context, spread gateway.Spread, qty int) (*TradeFillSummary, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	short, long, err := c.fetchQuotes(ctx, spread)
	if err != nil {
		return nil, err
	}
	ladder, err := NewCloseLadder(short, long)
	if err != nil {
		return nil, err
	}
	return c.chase(ctx, spread, qty, nil, ladder, c.closeWait(), "close")
}

func (c *Chaser) fetchQuotes(ctx context.Context, spread gateway.Spread) (short, long gateway.Quote, err error) {
	short, err = c.Quotes.LatestQuote(ctx, spread.Short.Symbol)
	if err != nil {
		return
	}
	long, err = c.Quotes.LatestQuote(ctx, spread.Long.Symbol)
	return
}

// chase 状态机主体。终态：
//   - done：全部成交
//   - exhausted：价格越过边界仍有剩余
//   - unaffordable：现金或组合预算连一张都买不起
//   - aborted：ctx 取消（已成交部分照常汇总返回）
func (c *Chaser) chase(ctx context.Context, spread gateway.Spread, qty int, ceiling *decimal.Decimal, ladder Ladder, wait time.Duration, mode string) (*TradeFillSummary, error) {
	agg := newFillAggregator(spread, qty)
	remaining := qty
	price := ladder.Start
	rung := 0

	var cash decimal.Decimal
	hasCeiling := ceiling != nil
	if hasCeiling {
		cash = *ceiling
	}

	outcome := "exhausted"

loop:
	for remaining > 0 && !ladder.Crossed(price) {
		if ctx.Err() != nil {
			outcome = "aborted"
			break
		}
		rung++

		// 本档每张合约的现金占用；credit 档不占用资金
		unitCost := price.Mul(contractMultiplier)
		orderQty := remaining
		if hasCeiling && unitCost.IsPositive() {
			affordable := cash.Div(unitCost).IntPart()
			if affordable < 1 {
				outcome = "unaffordable"
				break
			}
			if int64(orderQty) > affordable {
				orderQty = int(affordable)
			}
		}

		var reservation *risk.Reservation
		if c.Budget != nil {
			res, units, err := c.Budget.ReserveUnits(unitCost, orderQty)
			if err != nil {
				if errors.Is(err, risk.ErrBudgetExhausted) {
					outcome = "unaffordable"
					break loop
				}
				return agg.summary(), err
			}
			reservation = res
			orderQty = units
		}

		snap, err := c.Gateway.Submit(ctx, gateway.OrderRequest{
			Spread:        spread,
			Quantity:      orderQty,
			LimitPrice:    price,
			ClientOrderID: uuid.NewString(),
		})
		if err != nil {
			// 单档下单失败不致命也不重试，推进到下一档
			c.log().LogChase("submit_failed", spread.Underlying, map[string]interface{}{
				"mode": mode, "rung": rung, "price": price.String(), "qty": orderQty, "error": err.Error(),
			})
			metrics.SubmitFailures.WithLabelValues(mode).Inc()
			settle(reservation, decimal.Zero)
			price = ladder.Next(price)
			continue
		}
		metrics.RungsSubmitted.WithLabelValues(mode).Inc()
		c.log().LogChase("rung_submitted", spread.Underlying, map[string]interface{}{
			"mode": mode, "rung": rung, "price": price.String(), "qty": orderQty, "order_id": snap.ID,
		})

		started := time.Now()
		res, werr := c.observer().Await(ctx, snap.ID, wait)
		metrics.RungWaitSeconds.Observe(time.Since(started).Seconds())

		if werr != nil {
			if errors.Is(werr, ErrFillTimeout) {
				metrics.FillTimeouts.WithLabelValues(mode).Inc()
			}
			// 撤单并取最终快照兜底：撤单与成交可能竞态，
			// 以券商最终状态为准，保证成交不丢不重
			final := c.cancelAndSettle(snap.ID, res)
			filled := clampFill(final.FilledQty, orderQty)
			cash = c.reconcile(agg, final, filled, reservation, &remaining, cash, hasCeiling)
			if filled > 0 {
				metrics.RecordFill(mode, spread.Underlying, filled, final.FilledAvgPrice.InexactFloat64())
			}
			if ctx.Err() != nil {
				outcome = "aborted"
				break
			}
			price = ladder.Next(price)
			continue
		}

		// 有成交（可能部分）。剩余未成交部分先撤掉，再取最终快照，
		// 避免漏掉撤单前最后一刻的增量成交
		final := res
		if res.FilledQty < orderQty && !res.Status.Terminal() {
			final = c.cancelAndSettle(snap.ID, res)
		}
		filled := clampFill(final.FilledQty, orderQty)
		cash = c.reconcile(agg, final, filled, reservation, &remaining, cash, hasCeiling)
		if filled > 0 {
			metrics.RecordFill(mode, spread.Underlying, filled, final.FilledAvgPrice.InexactFloat64())
			c.log().LogChase("rung_filled", spread.Underlying, map[string]interface{}{
				"mode": mode, "rung": rung, "order_id": final.ID,
				"filled": filled, "avg_price": final.FilledAvgPrice.String(), "remaining": remaining,
			})
		}
		price = ladder.Next(price)
	}

	if remaining == 0 {
		outcome = "done"
	}
	metrics.ChaseOutcomes.WithLabelValues(mode, outcome).Inc()
	if c.Budget != nil {
		metrics.BudgetCommitted.Set(c.Budget.Committed().InexactFloat64())
	}
	summary := agg.summary()
	c.log().LogChase("chase_"+outcome, spread.Underlying, map[string]interface{}{
		"mode": mode, "rungs": rung, "requested": qty, "remaining": remaining,
	})
	if outcome == "aborted" {
		return summary, ctx.Err()
	}
	return summary, nil
}

// cancelAndSettle 尽力撤单后查一次最终快照。用独立的短超时 ctx：
// 即使调用方 ctx 已取消，清理也必须尝试，不能把在途订单留在市场上。
func (c *Chaser) cancelAndSettle(orderID string, last gateway.OrderSnapshot) gateway.OrderSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := c.Gateway.Cancel(ctx, orderID); err != nil && !errors.Is(err, gateway.ErrOrderNotCancelable) {
		// 撤单失败只影响本档：记下来，照常推进
		metrics.CancelErrors.Inc()
		c.log().LogOrder("cancel_failed", orderID, map[string]interface{}{"error": err.Error()})
	}
	snap, err := c.Gateway.GetOrder(ctx, orderID)
	if err != nil {
		return last
	}
	return snap
}

// reconcile 把一档的最终成交记入汇总、扣减剩余数量和现金、结算预留。
func (c *Chaser) reconcile(agg *fillAggregator, snap gateway.OrderSnapshot, filled int, reservation *risk.Reservation, remaining *int, cash decimal.Decimal, hasCeiling bool) decimal.Decimal {
	if filled <= 0 {
		settle(reservation, decimal.Zero)
		return cash
	}
	agg.record(snap, filled)
	*remaining -= filled
	cost := snap.FilledAvgPrice.Mul(decimal.NewFromInt(int64(filled))).Mul(contractMultiplier)
	settle(reservation, cost)
	if hasCeiling && cost.IsPositive() {
		cash = cash.Sub(cost)
	}
	return cash
}

func settle(r *risk.Reservation, actual decimal.Decimal) {
	if r == nil {
		return
	}
	_ = r.Commit(actual)
}

// clampFill 券商回报的成交数量按本档委托数量封顶。
func clampFill(filled, ordered int) int {
	if filled > ordered {
		return ordered
	}
	if filled < 0 {
		return 0
	}
	return filled
}

func (c *Chaser) observer() FillObserver {
	if c.Observer != nil {
		return c.Observer
	}
	interval := c.Config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingObserver{Fetcher: c.Gateway, Interval: interval}
}

func (c *Chaser) openWait() time.Duration {
	if c.Config.OpenWait > 0 {
		return c.Config.OpenWait
	}
	return DefaultOpenWait
}

func (c *Chaser) closeWait() time.Duration {
	if c.Config.CloseWait > 0 {
		return c.Config.CloseWait
	}
	return DefaultCloseWait
}

func (c *Chaser) log() *logger.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logger.Nop()
}
