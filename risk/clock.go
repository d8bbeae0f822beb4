package risk

import "time"

// Clock 抽象时间来源，便于测试注入。
type Clock interface {
	Now() time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// NowUTC 默认时钟。
var NowUTC Clock = utcClock{}
