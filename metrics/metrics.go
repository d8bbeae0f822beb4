// Package metrics 暴露 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RungsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_chase_rungs_submitted_total",
		Help: "追价循环提交的限价档数",
	}, []string{"mode"})

	SubmitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_chase_submit_failures_total",
		Help: "单档下单失败次数（不重试，推进价格）",
	}, []string{"mode"})

	FillTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_chase_fill_timeouts_total",
		Help: "等待成交超时次数",
	}, []string{"mode"})

	CancelErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_chase_cancel_errors_total",
		Help: "撤单失败次数（不含订单已终态）",
	})

	ContractsFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_contracts_filled_total",
		Help: "累计成交合约张数",
	}, []string{"mode"})

	ChaseOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_chase_outcomes_total",
		Help: "追价循环终态分布 (done/exhausted/unaffordable/aborted)",
	}, []string{"mode", "outcome"})

	RungWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trader_rung_wait_seconds",
		Help:    "单档等待成交耗时",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
	})

	BudgetCommitted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_budget_committed_usd",
		Help: "组合预算已确认花费（美元）",
	})

	LastFillPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trader_last_fill_price",
		Help: "最近一次成交的价差均价",
	}, []string{"underlying"})

	OpenTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_open_trades",
		Help: "当前在仓的日历价差数",
	})
)

// RecordFill 记录一档成交。
func RecordFill(mode, underlying string, qty int, avgPrice float64) {
	ContractsFilled.WithLabelValues(mode).Add(float64(qty))
	LastFillPrice.WithLabelValues(underlying).Set(avgPrice)
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
