package execution

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-trader-go/gateway"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func q(bid, ask string) gateway.Quote {
	return gateway.Quote{Bid: d(bid), Ask: d(ask)}
}

func TestNewOpenLadder(t *testing.T) {
	// short(1.00/1.10) long(2.00/2.20):
	// start = 2.10 - 1.05 = 1.05, step = (0.10+0.20)/2 = 0.15, bound = 2.20
	l, err := NewOpenLadder(q("1.00", "1.10"), q("2.00", "2.20"))
	require.NoError(t, err)
	assert.True(t, l.Start.Equal(d("1.05")), "start = %s", l.Start)
	assert.True(t, l.Step.Equal(d("0.15")), "step = %s", l.Step)
	assert.True(t, l.Bound.Equal(d("2.20")), "bound = %s", l.Bound)
	assert.Equal(t, 1, l.Direction)
}

func TestOpenLadderMinimumTick(t *testing.T) {
	// 两腿都是一分钱宽：步长钳到 0.01
	l, err := NewOpenLadder(q("1.00", "1.01"), q("2.00", "2.01"))
	require.NoError(t, err)
	assert.True(t, l.Step.Equal(d("0.01")), "step = %s", l.Step)
}

// 平仓方向最容易写反，边界场景单独验证：
// 起点是最大 credit（负 debit），逐档上移直到近月 ask 的 debit 上限。
func TestCloseLadder_CreditToDebitCap(t *testing.T) {
	short := q("1.00", "1.10")
	long := q("2.00", "2.20")
	l, err := NewCloseLadder(short, long)
	require.NoError(t, err)

	// start = -(2.20 - 1.00) = -1.20（收 $1.20）
	assert.True(t, l.Start.Equal(d("-1.20")), "start = %s", l.Start)
	// bound = +1.10（最多倒贴 $1.10）
	assert.True(t, l.Bound.Equal(d("1.10")), "bound = %s", l.Bound)
	assert.True(t, l.Step.Equal(d("0.15")))

	// 行进方向：credit 缩水、转 debit、最终越界
	price := l.Start
	var visited []string
	for !l.Crossed(price) {
		visited = append(visited, price.String())
		price = l.Next(price)
	}
	require.NotEmpty(t, visited)
	assert.Equal(t, "-1.2", visited[0])
	last := d(visited[len(visited)-1])
	assert.True(t, last.LessThanOrEqual(l.Bound))
	assert.True(t, l.Next(last).GreaterThan(l.Bound), "loop must stop just past the debit cap")
}

func TestLadderBoundInclusive(t *testing.T) {
	l := Ladder{Start: d("1.00"), Step: d("0.50"), Bound: d("2.00"), Direction: 1}
	assert.False(t, l.Crossed(d("2.00")), "bound price itself is still submittable")
	assert.True(t, l.Crossed(d("2.01")))
}

func TestLadderQuoteUnavailable(t *testing.T) {
	// ask 缺失（0）→ 未下任何单之前整体失败
	_, err := NewOpenLadder(q("1.00", "0"), q("2.00", "2.20"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrQuoteUnavailable))

	_, err = NewCloseLadder(q("1.00", "1.10"), q("0", "0"))
	assert.True(t, errors.Is(err, gateway.ErrQuoteUnavailable))

	// bid > ask 同样视为报价不可用
	_, err = NewOpenLadder(q("1.20", "1.10"), q("2.00", "2.20"))
	assert.True(t, errors.Is(err, gateway.ErrQuoteUnavailable))
}
