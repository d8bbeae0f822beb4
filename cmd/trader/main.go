package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/shopspring/decimal"

	"calendar-trader-go/config"
	"calendar-trader-go/execution"
	"calendar-trader-go/gateway"
	"calendar-trader-go/infrastructure/logger"
	"calendar-trader-go/journal"
	"calendar-trader-go/metrics"
	"calendar-trader-go/risk"
	"calendar-trader-go/workflow"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", ":9100", "Prometheus metrics 监听地址，留空则关闭")
	tickInterval := flag.Duration("tick", time.Minute, "调度扫描间隔")
	useStream := flag.Bool("stream", false, "用 trade_updates 推送流等成交（默认轮询）")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	addr := *metricsAddr
	if cfg.Metrics.Addr != "" {
		addr = cfg.Metrics.Addr
	}
	metrics.StartMetricsServer(addr)

	restClient := &gateway.AlpacaRESTClient{
		BaseURL:    cfg.Alpaca.BaseURL,
		DataURL:    cfg.Alpaca.DataURL,
		APIKey:     cfg.Alpaca.APIKey,
		APISecret:  cfg.Alpaca.APISecret,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    gateway.NewMinuteQuotaLimiter(cfg.Alpaca.RequestsPerMinute),
	}

	store, err := journal.NewStore(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("打开交易日志本失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 组合预算：配置优先，缺省用当前账户权益
	ceiling := decimal.NewFromFloat(cfg.Trading.PortfolioBudgetUSD)
	if !ceiling.IsPositive() {
		equity, err := restClient.Equity(ctx)
		if err != nil {
			log.Fatalf("查询账户权益失败: %v", err)
		}
		ceiling = equity
	}
	budget := risk.NewBudgetReserver(ceiling)
	zlog.LogTrade("budget_ceiling", map[string]interface{}{"usd": ceiling.String()})

	var observer execution.FillObserver
	if *useStream {
		stream := gateway.NewAlpacaStream(cfg.Alpaca.StreamURL, cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
		stream.OnConnect(func() {
			zlog.LogTrade("stream_connect", nil)
		})
		stream.OnDisconnect(func(err error) {
			zlog.LogError(err, map[string]interface{}{"stage": "stream"})
		})
		go streamLoop(ctx, stream, zlog)
		observer = &execution.StreamObserver{Feed: stream}
	}

	// 热更新只动执行层参数，每个 tick 取一次快照
	var chaseCfg atomic.Pointer[config.ChaseConfig]
	chaseCfg.Store(&cfg.Chase)
	watcher := &config.Watcher{Path: *cfgPath}
	go func() {
		err := watcher.Start(ctx, func(next config.AppConfig) {
			chaseCfg.Store(&next.Chase)
			zlog.LogTrade("config_reloaded", map[string]interface{}{
				"openWaitSec":  next.Chase.OpenWaitSec,
				"closeWaitSec": next.Chase.CloseWaitSec,
			})
		})
		if err != nil && ctx.Err() == nil {
			zlog.LogError(err, map[string]interface{}{"stage": "config_watch"})
		}
	}()

	notifier := &execution.AsyncNotifier{Log: zlog}
	newRunner := func() *workflow.Runner {
		cc := chaseCfg.Load()
		chaser := &execution.Chaser{
			Gateway:  restClient,
			Quotes:   restClient,
			Observer: observer,
			Budget:   budget,
			Log:      zlog,
			Config: execution.ChaseConfig{
				OpenWait:     cc.OpenWait(),
				CloseWait:    cc.CloseWait(),
				PollInterval: cc.PollInterval(),
			},
		}
		return &workflow.Runner{
			Provider:      &workflow.FileCandidateProvider{Path: cfg.Trading.CandidatesFile},
			Executor:      chaser,
			Journal:       store,
			Quotes:        restClient,
			Account:       restClient,
			Gateway:       restClient,
			Observer:      &execution.PollingObserver{Fetcher: restClient, Interval: cc.PollInterval()},
			Notifier:      notifier,
			Log:           zlog,
			Windows:       windows(cfg.Trading),
			Sizer:         workflow.KellySizer{Fraction: decimal.NewFromFloat(cfg.Trading.KellyFraction)},
			MaxConcurrent: cfg.Trading.MaxConcurrent,
			ChaseOnClose:  cfg.Trading.ChaseOnClose,
			CloseWait:     cc.CloseWait(),
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zlog.LogTrade("shutdown_signal", nil)
		cancel()
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdogLoop(ctx)

	zlog.LogTrade("trader_started", map[string]interface{}{"env": cfg.Env, "tick": tickInterval.String()})
	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()
	for {
		if err := newRunner().Tick(ctx); err != nil {
			zlog.LogError(err, map[string]interface{}{"stage": "tick"})
		}
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			notifier.Wait()
			zlog.LogTrade("trader_stopped", nil)
			return
		case <-ticker.C:
		}
	}
}

func windows(t config.TradingConfig) workflow.Windows {
	return workflow.Windows{
		OpenAt:   t.OpenAt,
		CloseAt:  t.CloseAt,
		Validity: time.Duration(t.WindowMinutes) * time.Minute,
	}
}

// streamLoop 断线重连，指数退避封顶 1 分钟。
func streamLoop(ctx context.Context, stream *gateway.AlpacaStream, zlog *logger.Logger) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := stream.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			zlog.LogError(err, map[string]interface{}{"stage": "stream_run"})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

// watchdogLoop 给 systemd 喂狗（未启用 watchdog 时直接退出）。
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
