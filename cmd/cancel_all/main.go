// 应急工具：撤掉账户里所有未完结订单。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"calendar-trader-go/config"
	"calendar-trader-go/gateway"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	client := &gateway.AlpacaRESTClient{
		BaseURL:    cfg.Alpaca.BaseURL,
		DataURL:    cfg.Alpaca.DataURL,
		APIKey:     cfg.Alpaca.APIKey,
		APISecret:  cfg.Alpaca.APISecret,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    gateway.NewMinuteQuotaLimiter(cfg.Alpaca.RequestsPerMinute),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orders, err := client.ListOpenOrders(ctx)
	if err != nil {
		log.Fatalf("查询挂单失败: %v", err)
	}
	if len(orders) == 0 {
		fmt.Println("没有挂单")
		return
	}

	fmt.Printf("撤销 %d 张挂单...\n", len(orders))
	failed := 0
	for _, o := range orders {
		err := client.Cancel(ctx, o.ID)
		switch {
		case err == nil:
			fmt.Printf("  已撤 %s (%s)\n", o.ID, o.Status)
		case errors.Is(err, gateway.ErrOrderNotCancelable):
			fmt.Printf("  已终态 %s\n", o.ID)
		default:
			failed++
			fmt.Printf("  撤单失败 %s: %v\n", o.ID, err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
