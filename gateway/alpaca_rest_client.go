package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlpacaRESTClient 调用 Alpaca 交易与行情 REST 接口。
// HTTPClient 可注入 httptest；默认不发起真实网络调用。
type AlpacaRESTClient struct {
	BaseURL    string // 交易接口，如 https://paper-api.alpaca.markets
	DataURL    string // 行情接口，如 https://data.alpaca.markets
	APIKey     string
	APISecret  string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

type orderLegJSON struct {
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	PositionIntent string `json:"position_intent"`
	RatioQty       string `json:"ratio_qty"`
}

type placeOrderJSON struct {
	OrderClass    string         `json:"order_class"`
	Type          string         `json:"type"`
	Qty           string         `json:"qty"`
	LimitPrice    string         `json:"limit_price"`
	TimeInForce   string         `json:"time_in_force"`
	ClientOrderID string         `json:"client_order_id,omitempty"`
	Legs          []orderLegJSON `json:"legs"`
}

type orderJSON struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"client_order_id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	Commission     string `json:"commission"`
}

func (o orderJSON) snapshot() OrderSnapshot {
	snap := OrderSnapshot{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Status:        OrderStatus(o.Status),
	}
	if q, err := strconv.ParseFloat(o.FilledQty, 64); err == nil {
		snap.FilledQty = int(q)
	}
	if o.FilledAvgPrice != "" {
		if p, err := decimal.NewFromString(o.FilledAvgPrice); err == nil {
			snap.FilledAvgPrice = p
		}
	}
	if o.Commission != "" {
		if c, err := decimal.NewFromString(o.Commission); err == nil {
			snap.Commission = c
		}
	}
	return snap
}

func (c *AlpacaRESTClient) do(req *http.Request) (*http.Response, error) {
	if c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req.Header.Set("APCA-API-KEY-ID", c.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.APISecret)
	req.Header.Set("Content-Type", "application/json")
	return c.HTTPClient.Do(req)
}

// Submit 提交 day 限价多腿订单。每条腿固定 ratio_qty=1。
func (c *AlpacaRESTClient) Submit(ctx context.Context, r OrderRequest) (OrderSnapshot, error) {
	if r.Quantity < 1 {
		return OrderSnapshot{}, fmt.Errorf("order quantity must be >= 1, got %d", r.Quantity)
	}
	clientID := r.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	body := placeOrderJSON{
		OrderClass:    "mleg",
		Type:          "limit",
		Qty:           strconv.Itoa(r.Quantity),
		LimitPrice:    r.LimitPrice.StringFixed(2),
		TimeInForce:   "day",
		ClientOrderID: clientID,
	}
	for _, leg := range r.Spread.Legs() {
		body.Legs = append(body.Legs, orderLegJSON{
			Symbol:         leg.Symbol,
			Side:           string(leg.Side),
			PositionIntent: string(leg.Intent),
			RatioQty:       "1",
		})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return OrderSnapshot{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/orders", bytes.NewReader(raw))
	if err != nil {
		return OrderSnapshot{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return OrderSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return OrderSnapshot{}, fmt.Errorf("submit order status %d: %s", resp.StatusCode, msg)
	}
	var oj orderJSON
	if err := json.NewDecoder(resp.Body).Decode(&oj); err != nil {
		return OrderSnapshot{}, err
	}
	if oj.ID == "" {
		return OrderSnapshot{}, fmt.Errorf("empty order id")
	}
	return oj.snapshot(), nil
}

// GetOrder 查询订单快照。
func (c *AlpacaRESTClient) GetOrder(ctx context.Context, orderID string) (OrderSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v2/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return OrderSnapshot{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return OrderSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return OrderSnapshot{}, fmt.Errorf("get order status %d", resp.StatusCode)
	}
	var oj orderJSON
	if err := json.NewDecoder(resp.Body).Decode(&oj); err != nil {
		return OrderSnapshot{}, err
	}
	return oj.snapshot(), nil
}

// Cancel 撤单。订单已终态时券商返回 422，映射为 ErrOrderNotCancelable。
func (c *AlpacaRESTClient) Cancel(ctx context.Context, orderID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/v2/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrOrderNotCancelable
	case resp.StatusCode >= 300:
		return fmt.Errorf("cancel order status %d", resp.StatusCode)
	}
	return nil
}

// ListOpenOrders 列出所有未完结订单（清理工具用）。
func (c *AlpacaRESTClient) ListOpenOrders(ctx context.Context) ([]OrderSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v2/orders?status=open&limit=500", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("list orders status %d", resp.StatusCode)
	}
	var raw []orderJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]OrderSnapshot, 0, len(raw))
	for _, oj := range raw {
		out = append(out, oj.snapshot())
	}
	return out, nil
}

type latestQuoteJSON struct {
	Quotes map[string]struct {
		BidPrice json.Number `json:"bp"`
		AskPrice json.Number `json:"ap"`
	} `json:"quotes"`
}

// LatestQuote 查询期权合约最新报价。缺失时返回 ErrQuoteUnavailable。
func (c *AlpacaRESTClient) LatestQuote(ctx context.Context, symbol string) (Quote, error) {
	endpoint := c.DataURL + "/v1beta1/options/quotes/latest?feed=indicative&symbols=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Quote{}, fmt.Errorf("latest quote status %d", resp.StatusCode)
	}
	var lq latestQuoteJSON
	if err := json.NewDecoder(resp.Body).Decode(&lq); err != nil {
		return Quote{}, err
	}
	entry, ok := lq.Quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}
	bid, berr := decimal.NewFromString(entry.BidPrice.String())
	ask, aerr := decimal.NewFromString(entry.AskPrice.String())
	if berr != nil || aerr != nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}
	q := Quote{Bid: bid, Ask: ask}
	if !q.Valid() {
		return Quote{}, fmt.Errorf("%w: %s bid=%s ask=%s", ErrQuoteUnavailable, symbol, bid, ask)
	}
	return q, nil
}

// Equity 查询账户权益（美元）。
func (c *AlpacaRESTClient) Equity(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v2/account", nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("get account status %d", resp.StatusCode)
	}
	var acct struct {
		Equity string `json:"equity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return decimal.Zero, err
	}
	eq, err := decimal.NewFromString(acct.Equity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse equity %q: %w", acct.Equity, err)
	}
	return eq, nil
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
