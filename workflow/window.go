package workflow

import (
	"fmt"
	"time"
)

// 交易窗口都以美东时间计算。
var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("load America/New_York: %v", err))
	}
	return loc
}

// Windows 开平仓时间窗。开仓在财报公布前最后一个收盘时段，
// 平仓在公布后第一个开盘时段，各自在起点后 Validity 内有效。
type Windows struct {
	OpenAt   string        // HH:MM，默认 15:45
	CloseAt  string        // HH:MM，默认 09:45
	Validity time.Duration // 默认 30 分钟
}

func (w Windows) openAt() string {
	if w.OpenAt == "" {
		return "15:45"
	}
	return w.OpenAt
}

func (w Windows) closeAt() string {
	if w.CloseAt == "" {
		return "09:45"
	}
	return w.CloseAt
}

func (w Windows) validity() time.Duration {
	if w.Validity <= 0 {
		return 30 * time.Minute
	}
	return w.Validity
}

// OpenStart 开仓窗口起点：
// BMO（T 日盘前公布）在 T-1 日收盘前，AMC（T 日盘后公布）在 T 日收盘前。
func (w Windows) OpenStart(c Candidate) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, c.EarningsDate, eastern)
	if err != nil {
		return time.Time{}, fmt.Errorf("candidate %s: bad earnings date: %w", c.Symbol, err)
	}
	if c.Timing == TimingBMO {
		day = day.AddDate(0, 0, -1)
	}
	return atClock(day, w.openAt())
}

// CloseStart 平仓窗口起点：
// BMO 在 T 日开盘后，AMC 在 T+1 日开盘后。
func (w Windows) CloseStart(earningsDate, timing string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, earningsDate, eastern)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad earnings date: %w", err)
	}
	if timing == TimingAMC {
		day = day.AddDate(0, 0, 1)
	}
	return atClock(day, w.closeAt())
}

// InOpenWindow now 是否落在候选的开仓窗口内。
func (w Windows) InOpenWindow(c Candidate, now time.Time) (bool, error) {
	start, err := w.OpenStart(c)
	if err != nil {
		return false, err
	}
	return within(now, start, w.validity()), nil
}

// InCloseWindow now 是否落在平仓窗口内。
func (w Windows) InCloseWindow(earningsDate, timing string, now time.Time) (bool, error) {
	start, err := w.CloseStart(earningsDate, timing)
	if err != nil {
		return false, err
	}
	return within(now, start, w.validity()), nil
}

// PastCloseWindow 平仓窗口是否已经错过（守护进程重启后补平用）。
func (w Windows) PastCloseWindow(earningsDate, timing string, now time.Time) (bool, error) {
	start, err := w.CloseStart(earningsDate, timing)
	if err != nil {
		return false, err
	}
	return now.After(start.Add(w.validity())), nil
}

func within(now, start time.Time, validity time.Duration) bool {
	return !now.Before(start) && now.Before(start.Add(validity))
}

func atClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", clock, eastern)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad clock %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, eastern), nil
}
