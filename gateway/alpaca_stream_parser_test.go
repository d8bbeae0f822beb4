package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseTradeUpdate(t *testing.T) {
	raw := []byte(`{
		"stream":"trade_updates",
		"data":{
		  "event":"partial_fill",
		  "order":{"id":"ord-9","status":"partially_filled","filled_qty":"2","filled_avg_price":"1.15"}
		}
	}`)
	upd, ok, err := ParseTradeUpdate(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if !ok {
		t.Fatalf("expected trade update")
	}
	if upd.Event != "partial_fill" || upd.Order.ID != "ord-9" {
		t.Fatalf("unexpected update: %+v", upd)
	}
	if upd.Order.FilledQty != 2 || !upd.Order.FilledAvgPrice.Equal(decimal.RequireFromString("1.15")) {
		t.Fatalf("unexpected fill fields: %+v", upd.Order)
	}
}

func TestParseTradeUpdateSkipsControlMessages(t *testing.T) {
	raw := []byte(`{"stream":"authorization","data":{"status":"authorized","action":"authenticate"}}`)
	_, ok, err := ParseTradeUpdate(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ok {
		t.Fatalf("control message should not be a trade update")
	}
}
