package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrBudgetExhausted = errors.New("portfolio budget exhausted")
	ErrDoubleSettle    = errors.New("reservation already settled")
)

// BudgetReserver 维护组合层面的资金上限，供并发执行的多个追价循环共用。
// 下单前 Reserve，订单落定后 Commit 实际花费（未用部分自动归还）。
// 不变量：committed + reserved 永不超过 ceiling。
type BudgetReserver struct {
	mu        sync.Mutex
	ceiling   decimal.Decimal
	committed decimal.Decimal
	reserved  decimal.Decimal
}

func NewBudgetReserver(ceiling decimal.Decimal) *BudgetReserver {
	return &BudgetReserver{ceiling: ceiling}
}

// Available 当前还可预留的金额。
func (b *BudgetReserver) Available() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.availableLocked()
}

func (b *BudgetReserver) availableLocked() decimal.Decimal {
	return b.ceiling.Sub(b.committed).Sub(b.reserved)
}

// Committed 已确认花费总额。
func (b *BudgetReserver) Committed() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// Reservation 一次预留。Commit 或 Release 恰好调用一次。
type Reservation struct {
	b       *BudgetReserver
	amount  decimal.Decimal
	settled bool
}

// Amount 预留金额。
func (r *Reservation) Amount() decimal.Decimal { return r.amount }

// ReserveUnits 按单位成本预留至多 want 个单位，返回实际预留的单位数。
// 一个单位都留不出时返回 ErrBudgetExhausted。unitCost <= 0（净收款）时
// 不占用预算，预留数量等于 want。
func (b *BudgetReserver) ReserveUnits(unitCost decimal.Decimal, want int) (*Reservation, int, error) {
	if want < 1 {
		return nil, 0, fmt.Errorf("want must be >= 1, got %d", want)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !unitCost.IsPositive() {
		return &Reservation{b: b, amount: decimal.Zero}, want, nil
	}

	avail := b.availableLocked()
	affordable := avail.Div(unitCost).IntPart() // 向零取整
	if affordable < 1 {
		return nil, 0, fmt.Errorf("%w: available %s, unit cost %s", ErrBudgetExhausted, avail, unitCost)
	}
	units := want
	if int64(units) > affordable {
		units = int(affordable)
	}
	amount := unitCost.Mul(decimal.NewFromInt(int64(units)))
	b.reserved = b.reserved.Add(amount)
	return &Reservation{b: b, amount: amount}, units, nil
}

// Commit 确认实际花费 actual，释放剩余预留。actual 超出预留额时按预留额封顶
// 入账（多出的部分说明上游对账有误，由调用方记日志）。
func (r *Reservation) Commit(actual decimal.Decimal) error {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	if r.settled {
		return ErrDoubleSettle
	}
	r.settled = true
	if actual.IsNegative() {
		actual = decimal.Zero
	}
	if actual.GreaterThan(r.amount) {
		actual = r.amount
	}
	r.b.reserved = r.b.reserved.Sub(r.amount)
	r.b.committed = r.b.committed.Add(actual)
	return nil
}

// Release 全额释放预留（分毫未花）。
func (r *Reservation) Release() error {
	return r.Commit(decimal.Zero)
}
