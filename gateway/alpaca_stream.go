package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AlpacaStream 连接券商 trade_updates 推送流，并按订单号分发成交快照。
// 作为轮询等待的推送式替代：订阅者拿到的是与 GetOrder 相同形状的快照。
type AlpacaStream struct {
	Endpoint  string // 如 wss://paper-api.alpaca.markets/stream
	APIKey    string
	APISecret string
	Dialer    *websocket.Dialer

	mu   sync.Mutex
	subs map[string][]chan OrderSnapshot

	onConnect    func()
	onDisconnect func(error)
}

func NewAlpacaStream(endpoint, key, secret string) *AlpacaStream {
	return &AlpacaStream{
		Endpoint:  endpoint,
		APIKey:    key,
		APISecret: secret,
		Dialer:    websocket.DefaultDialer,
		subs:      make(map[string][]chan OrderSnapshot),
	}
}

func (s *AlpacaStream) OnConnect(fn func())         { s.onConnect = fn }
func (s *AlpacaStream) OnDisconnect(fn func(error)) { s.onDisconnect = fn }

// Subscribe 返回指定订单的快照通道和取消函数。
// 通道带缓冲；分发是非阻塞的，慢消费者只会丢中间快照，不会卡住读循环。
func (s *AlpacaStream) Subscribe(orderID string) (<-chan OrderSnapshot, func()) {
	ch := make(chan OrderSnapshot, 8)
	s.mu.Lock()
	s.subs[orderID] = append(s.subs[orderID], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.subs[orderID]
		for i, c := range chans {
			if c == ch {
				s.subs[orderID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(s.subs[orderID]) == 0 {
			delete(s.subs, orderID)
		}
	}
	return ch, cancel
}

func (s *AlpacaStream) dispatch(upd FillUpdate) {
	s.mu.Lock()
	chans := append([]chan OrderSnapshot(nil), s.subs[upd.Order.ID]...)
	s.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- upd.Order:
		default:
		}
	}
}

type streamAuthMsg struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type streamListenMsg struct {
	Action string `json:"action"`
	Data   struct {
		Streams []string `json:"streams"`
	} `json:"data"`
}

// Run 建立连接、认证、订阅 trade_updates 并持续分发；连接断开返回错误。
// 重连由调用方决定（参见 cmd/trader 的退避循环）。
func (s *AlpacaStream) Run(ctx context.Context) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	auth := streamAuthMsg{Action: "auth", Key: s.APIKey, Secret: s.APISecret}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("stream auth: %w", err)
	}
	var listen streamListenMsg
	listen.Action = "listen"
	listen.Data.Streams = []string{"trade_updates"}
	if err := conn.WriteJSON(listen); err != nil {
		return fmt.Errorf("stream listen: %w", err)
	}
	if s.onConnect != nil {
		s.onConnect()
	}

	// ctx 取消时主动关闭连接让 ReadMessage 返回
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.onDisconnect != nil {
				s.onDisconnect(err)
			}
			return err
		}
		upd, ok, perr := ParseTradeUpdate(raw)
		if perr != nil || !ok {
			continue
		}
		s.dispatch(upd)
	}
}
