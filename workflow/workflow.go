package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"calendar-trader-go/execution"
	"calendar-trader-go/gateway"
	"calendar-trader-go/infrastructure/logger"
	"calendar-trader-go/journal"
	"calendar-trader-go/metrics"
	"calendar-trader-go/risk"
)

// Executor 追价执行器（execution.Chaser 的行为面）。
type Executor interface {
	ExecuteOpen(ctx context.Context, spread gateway.Spread, qty int, ceiling *decimal.Decimal) (*execution.TradeFillSummary, error)
	ExecuteClose(ctx context.Context, spread gateway.Spread, qty int) (*execution.TradeFillSummary, error)
}

// Journal 交易日志本的读写面。
type Journal interface {
	SaveOpen(p journal.OpenParams) (*journal.TradeRecord, error)
	ListOpen() ([]journal.TradeRecord, error)
	OpenByUnderlying(underlying string) (*journal.TradeRecord, error)
	MarkClosed(id string, p journal.CloseParams) error
}

// Runner 每个调度 tick 扫一遍候选和在仓，落在窗口内的并发执行。
// 每个标的一个 goroutine，互不拖累；tick 结束前汇合所有后台通知。
type Runner struct {
	Provider CandidateProvider
	Executor Executor
	Journal  Journal
	Quotes   gateway.QuoteSource
	Account  gateway.AccountReader
	Gateway  gateway.OrderGateway   // 非追价平仓直接下单
	Observer execution.FillObserver // 非追价平仓等成交
	Notifier *execution.AsyncNotifier
	Log      *logger.Logger
	Clock    risk.Clock
	Windows  Windows
	Sizer    KellySizer

	MaxConcurrent int
	ChaseOnClose  bool
	CloseWait     time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

// Tick 执行一轮调度。单个标的的失败只记日志，不影响其余标的，
// 也不作为 Tick 的错误返回。
func (r *Runner) Tick(ctx context.Context) error {
	now := r.clock().Now()
	r.notifier() // 先于并发任务初始化

	candidates, err := r.Provider.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	open, err := r.Journal.ListOpen()
	if err != nil {
		return fmt.Errorf("list open trades: %w", err)
	}

	sem := make(chan struct{}, r.maxConcurrent())
	var wg sync.WaitGroup

	for _, c := range candidates {
		in, werr := r.Windows.InOpenWindow(c, now)
		if werr != nil {
			r.log().LogError(werr, map[string]interface{}{"symbol": c.Symbol})
			continue
		}
		if !in || !r.claim(c.Symbol) {
			continue
		}
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()
			defer r.release(c.Symbol)
			defer r.recoverPanic(c.Symbol)
			sem <- struct{}{}
			defer func() { <-sem }()
			r.openOne(ctx, c)
		}(c)
	}

	for _, rec := range open {
		due, werr := r.Windows.InCloseWindow(rec.EarningsDate, rec.Timing, now)
		if werr == nil && !due {
			// 错过窗口的仓位（如进程当时没在跑）下个 tick 立即补平
			due, werr = r.Windows.PastCloseWindow(rec.EarningsDate, rec.Timing, now)
		}
		if werr != nil {
			r.log().LogError(werr, map[string]interface{}{"symbol": rec.Underlying})
			continue
		}
		if !due || !r.claim(rec.Underlying) {
			continue
		}
		wg.Add(1)
		go func(rec journal.TradeRecord) {
			defer wg.Done()
			defer r.release(rec.Underlying)
			defer r.recoverPanic(rec.Underlying)
			sem <- struct{}{}
			defer func() { <-sem }()
			r.closeOne(ctx, rec)
		}(rec)
	}

	wg.Wait()
	r.notifier().Wait()

	if remaining, err := r.Journal.ListOpen(); err == nil {
		metrics.OpenTrades.Set(float64(len(remaining)))
	}
	return nil
}

func (r *Runner) openOne(ctx context.Context, c Candidate) {
	if existing, err := r.Journal.OpenByUnderlying(c.Symbol); err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": c.Symbol})
		return
	} else if existing != nil {
		return
	}

	strike := c.StrikeDecimal()
	shortExp, _ := time.Parse(dateLayout, c.ShortExpiry)
	longExp, _ := time.Parse(dateLayout, c.LongExpiry)
	spread := gateway.NewCalendarOpen(c.Symbol, strike, shortExp, longExp)

	shortQ, longQ, err := r.spreadQuotes(ctx, spread)
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": c.Symbol, "stage": "open_quotes"})
		return
	}
	cost := longQ.Mid().Sub(shortQ.Mid())
	if !cost.IsPositive() {
		r.log().LogTrade("open_skipped_inverted_spread", map[string]interface{}{
			"symbol": c.Symbol, "cost": cost.String(),
		})
		return
	}

	equity, err := r.Account.Equity(ctx)
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": c.Symbol, "stage": "equity"})
		return
	}
	qty := r.Sizer.Quantity(equity, cost)
	if qty < 1 {
		r.log().LogTrade("open_skipped_unaffordable", map[string]interface{}{
			"symbol": c.Symbol, "equity": equity.String(), "cost": cost.String(),
		})
		return
	}
	ceiling := r.Sizer.Budget(equity)

	summary, err := r.Executor.ExecuteOpen(ctx, spread, qty, &ceiling)
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": c.Symbol, "stage": "open_chase"})
	}
	if summary == nil {
		return
	}

	rec, err := r.Journal.SaveOpen(journal.OpenParams{
		Underlying:   spread.Underlying,
		ShortSymbol:  spread.Short.Symbol,
		LongSymbol:   spread.Long.Symbol,
		Strike:       strike,
		ShortExpiry:  c.ShortExpiry,
		LongExpiry:   c.LongExpiry,
		EarningsDate: c.EarningsDate,
		Timing:       c.Timing,
		Quantity:     summary.FilledQty,
		OrderID:      summary.OrderID,
		AvgPrice:     summary.AvgFillPrice,
		Notional:     summary.NotionalOutlay,
		Commission:   summary.Commission,
	})
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": c.Symbol, "stage": "journal_open"})
		return
	}
	r.log().LogTrade("opened", map[string]interface{}{
		"symbol": c.Symbol, "trade_id": rec.ID, "qty": summary.FilledQty,
		"avg_price": summary.AvgFillPrice.String(),
	})
}

func (r *Runner) closeOne(ctx context.Context, rec journal.TradeRecord) {
	spread := gateway.CloseSpreadFromSymbols(rec.Underlying, rec.ShortSymbol, rec.LongSymbol)

	if r.ChaseOnClose {
		summary, err := r.Executor.ExecuteClose(ctx, spread, rec.Quantity)
		if err != nil {
			r.log().LogError(err, map[string]interface{}{"symbol": rec.Underlying, "stage": "close_chase"})
		}
		if summary == nil {
			return
		}
		r.settleClose(rec, summary.OrderID, summary.AvgFillPrice, summary.NotionalOutlay, summary.Commission, summary.FilledQty)
		return
	}
	r.closeAtMid(ctx, rec, spread)
}

// closeAtMid 非追价平仓：按中间价挂一张限价单，后台等成交。
// 超时撤单后保持在仓，下个 tick 再试。
func (r *Runner) closeAtMid(ctx context.Context, rec journal.TradeRecord, spread gateway.Spread) {
	shortQ, longQ, err := r.spreadQuotes(ctx, spread)
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": rec.Underlying, "stage": "close_quotes"})
		return
	}
	price := shortQ.Mid().Sub(longQ.Mid()) // 中间价 credit，debit 约定下为负

	snap, err := r.Gateway.Submit(ctx, gateway.OrderRequest{
		Spread:        spread,
		Quantity:      rec.Quantity,
		LimitPrice:    price,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": rec.Underlying, "stage": "close_submit"})
		return
	}

	wait := r.CloseWait
	if wait <= 0 {
		wait = execution.DefaultCloseWait
	}
	r.notifier().Go("close_"+rec.Underlying, func() {
		res, werr := r.Observer.Await(context.Background(), snap.ID, wait)
		if werr != nil {
			if cerr := r.Gateway.Cancel(context.Background(), snap.ID); cerr != nil &&
				!errors.Is(cerr, gateway.ErrOrderNotCancelable) {
				r.log().LogOrder("cancel_failed", snap.ID, map[string]interface{}{"error": cerr.Error()})
			}
			// 撤单竞态兜底，取最终快照
			if final, gerr := r.Gateway.GetOrder(context.Background(), snap.ID); gerr == nil {
				res = final
			}
		}
		if res.FilledQty == 0 {
			r.log().LogTrade("close_unfilled", map[string]interface{}{"symbol": rec.Underlying})
			return
		}
		notional := res.FilledAvgPrice.Mul(decimal.NewFromInt(int64(res.FilledQty))).Mul(contractMultiplier)
		r.settleClose(rec, res.ID, res.FilledAvgPrice, notional, res.Commission, res.FilledQty)
	})
}

func (r *Runner) settleClose(rec journal.TradeRecord, orderID string, avg, notional, commission decimal.Decimal, filled int) {
	if filled < rec.Quantity {
		r.log().LogTrade("close_partial", map[string]interface{}{
			"symbol": rec.Underlying, "filled": filled, "open_qty": rec.Quantity,
		})
	}
	err := r.Journal.MarkClosed(rec.ID, journal.CloseParams{
		OrderID:    orderID,
		AvgPrice:   avg,
		Notional:   notional,
		Commission: commission,
	})
	if err != nil {
		r.log().LogError(err, map[string]interface{}{"symbol": rec.Underlying, "stage": "journal_close"})
		return
	}
	r.log().LogTrade("closed", map[string]interface{}{
		"symbol": rec.Underlying, "trade_id": rec.ID, "qty": filled, "avg_price": avg.String(),
	})
}

func (r *Runner) spreadQuotes(ctx context.Context, spread gateway.Spread) (shortQ, longQ gateway.Quote, err error) {
	shortQ, err = r.Quotes.LatestQuote(ctx, spread.Short.Symbol)
	if err != nil {
		return
	}
	longQ, err = r.Quotes.LatestQuote(ctx, spread.Long.Symbol)
	return
}

func (r *Runner) claim(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight == nil {
		r.inFlight = make(map[string]bool)
	}
	if r.inFlight[symbol] {
		return false
	}
	r.inFlight[symbol] = true
	return true
}

func (r *Runner) release(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, symbol)
}

func (r *Runner) recoverPanic(symbol string) {
	if p := recover(); p != nil {
		r.log().LogError(fmt.Errorf("workflow panic for %s: %v", symbol, p), nil)
	}
}

func (r *Runner) maxConcurrent() int {
	if r.MaxConcurrent > 0 {
		return r.MaxConcurrent
	}
	return 4
}

func (r *Runner) clock() risk.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return risk.NowUTC
}

func (r *Runner) notifier() *execution.AsyncNotifier {
	if r.Notifier == nil {
		r.Notifier = &execution.AsyncNotifier{Log: r.Log}
	}
	return r.Notifier
}

func (r *Runner) log() *logger.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.Nop()
}
