package gateway

import (
	"sync"
	"time"
)

// RateLimiter 控制请求速率，避免触发券商限流。
type RateLimiter interface {
	Wait()
}

// MinuteQuotaLimiter 按每分钟配额限流（Alpaca 免费档 200 req/min）。
// 令牌按配额速率连续补充，突发上限为单分钟配额。
type MinuteQuotaLimiter struct {
	mu       sync.Mutex
	perMin   int
	tokens   float64
	lastFill time.Time
}

func NewMinuteQuotaLimiter(perMinute int) *MinuteQuotaLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &MinuteQuotaLimiter{
		perMin:   perMinute,
		tokens:   float64(perMinute),
		lastFill: time.Now(),
	}
}

func (l *MinuteQuotaLimiter) refillLocked(now time.Time) {
	perSec := float64(l.perMin) / 60.0
	l.tokens += now.Sub(l.lastFill).Seconds() * perSec
	if l.tokens > float64(l.perMin) {
		l.tokens = float64(l.perMin)
	}
	l.lastFill = now
}

// Wait 阻塞直到可以发起下一个请求。
func (l *MinuteQuotaLimiter) Wait() {
	for {
		l.mu.Lock()
		l.refillLocked(time.Now())
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return
		}
		deficit := 1 - l.tokens
		l.mu.Unlock()

		perSec := float64(l.perMin) / 60.0
		time.Sleep(time.Duration(deficit/perSec*float64(time.Second)) + time.Millisecond)
	}
}
