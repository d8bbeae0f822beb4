package gateway

import (
	"encoding/json"
)

// streamMessage 对应 Alpaca stream 的外层包装。
type streamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// FillUpdate trade_updates 流中的一次订单事件。
type FillUpdate struct {
	Event string // fill / partial_fill / canceled / expired / new ...
	Order OrderSnapshot
}

type tradeUpdateJSON struct {
	Event string    `json:"event"`
	Order orderJSON `json:"order"`
}

// ParseTradeUpdate 解析一条原始 stream 消息。
// 非 trade_updates 消息（authorization、listening）返回 ok=false。
func ParseTradeUpdate(raw []byte) (upd FillUpdate, ok bool, err error) {
	var msg streamMessage
	if err = json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Stream != "trade_updates" {
		return
	}
	var tu tradeUpdateJSON
	if err = json.Unmarshal(msg.Data, &tu); err != nil {
		return
	}
	upd = FillUpdate{Event: tu.Event, Order: tu.Order.snapshot()}
	ok = true
	return
}
