package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testSpread() Spread {
	strike := decimal.RequireFromString("150")
	return NewCalendarOpen("AAPL",
		strike,
		time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 19, 0, 0, 0, 0, time.UTC),
	)
}

func TestAlpacaRESTClientSubmitCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "key" {
			t.Fatalf("missing api key header")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/orders":
			var body placeOrderJSON
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.OrderClass != "mleg" || body.TimeInForce != "day" {
				t.Fatalf("unexpected order envelope: %+v", body)
			}
			if len(body.Legs) != 2 || body.Legs[0].Side != "sell" || body.Legs[1].Side != "buy" {
				t.Fatalf("unexpected legs: %+v", body.Legs)
			}
			if body.LimitPrice != "1.05" {
				t.Fatalf("unexpected limit price %s", body.LimitPrice)
			}
			io.WriteString(w, `{"id":"ord-1","client_order_id":"cid","status":"new","filled_qty":"0","filled_avg_price":""}`)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := &AlpacaRESTClient{
		BaseURL:    ts.URL,
		APIKey:     "key",
		APISecret:  "secret",
		HTTPClient: ts.Client(),
	}
	snap, err := cli.Submit(context.Background(), OrderRequest{
		Spread:        testSpread(),
		Quantity:      3,
		LimitPrice:    decimal.RequireFromString("1.05"),
		ClientOrderID: "cid",
	})
	if err != nil {
		t.Fatalf("submit err: %v", err)
	}
	if snap.ID != "ord-1" || snap.Status != StatusNew {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if err := cli.Cancel(context.Background(), snap.ID); err != nil {
		t.Fatalf("cancel err: %v", err)
	}
}

func TestAlpacaRESTClientCancelAlreadyTerminal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"message":"order is not cancelable"}`)
	}))
	defer ts.Close()

	cli := &AlpacaRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	err := cli.Cancel(context.Background(), "ord-done")
	if !errors.Is(err, ErrOrderNotCancelable) {
		t.Fatalf("expected ErrOrderNotCancelable, got %v", err)
	}
}

func TestAlpacaRESTClientGetOrderParsesFill(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"ord-2","status":"partially_filled","filled_qty":"3","filled_avg_price":"1.20","commission":"1.95"}`)
	}))
	defer ts.Close()

	cli := &AlpacaRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	snap, err := cli.GetOrder(context.Background(), "ord-2")
	if err != nil {
		t.Fatalf("get order err: %v", err)
	}
	if snap.FilledQty != 3 {
		t.Errorf("filled qty = %d, want 3", snap.FilledQty)
	}
	if !snap.FilledAvgPrice.Equal(decimal.RequireFromString("1.20")) {
		t.Errorf("avg price = %s, want 1.20", snap.FilledAvgPrice)
	}
	if !snap.Commission.Equal(decimal.RequireFromString("1.95")) {
		t.Errorf("commission = %s, want 1.95", snap.Commission)
	}
	if snap.Status.Terminal() {
		t.Errorf("partially_filled should not be terminal")
	}
}

func TestAlpacaRESTClientLatestQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"quotes":{"AAPL240621C00150000":{"bp":1.00,"ap":1.10}}}`)
	}))
	defer ts.Close()

	cli := &AlpacaRESTClient{DataURL: ts.URL, HTTPClient: ts.Client()}
	q, err := cli.LatestQuote(context.Background(), "AAPL240621C00150000")
	if err != nil {
		t.Fatalf("latest quote err: %v", err)
	}
	if !q.Bid.Equal(decimal.RequireFromString("1")) || !q.Ask.Equal(decimal.RequireFromString("1.1")) {
		t.Fatalf("unexpected quote: %+v", q)
	}

	// 缺失合约 → ErrQuoteUnavailable
	if _, err := cli.LatestQuote(context.Background(), "MSFT250117C00432500"); !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}
