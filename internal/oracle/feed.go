package oracle

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// feedMessage 喂价服务推送的 tick 消息
type feedMessage struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	TS     int64  `json:"ts"`
}

// WSFeed 基于 websocket 的实时喂价器
//
// 订阅外部价格流，把收到的十进制价格换算成 1e8 定点后写入 RoundStore。
// 断线后指数退避重连，直到 ctx 取消。
type WSFeed struct {
	url    string
	symbol string
	store  *RoundStore
	log    *logrus.Entry
}

// NewWSFeed 创建喂价器
func NewWSFeed(url, symbol string, store *RoundStore, log *logrus.Entry) *WSFeed {
	return &WSFeed{url: url, symbol: symbol, store: store, log: log}
}

// Run 持续订阅并喂价，阻塞直到 ctx 取消
func (f *WSFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			f.log.Warnf("喂价连接断开: %v，%s 后重连", err, backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// runOnce 单次连接生命周期
func (f *WSFeed) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// 订阅指定交易对
	sub := map[string]any{"op": "subscribe", "symbol": f.symbol}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	f.log.Infof("喂价已连接: %s (%s)", f.url, f.symbol)

	// ctx 取消时关闭连接，解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg feedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // 非 tick 消息，忽略
		}
		if msg.Symbol != "" && !strings.EqualFold(msg.Symbol, f.symbol) {
			continue
		}
		f.publish(msg.Price)
	}
}

// publish 解析十进制价格并写入轮次存储
func (f *WSFeed) publish(price string) {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil || d.Sign() <= 0 {
		return
	}
	scaled := d.Shift(PriceDecimals).Truncate(0).BigInt()
	if _, err := f.store.UpdateAnswer(scaled); err != nil {
		f.log.Warnf("写入报价失败: %v", err)
	}
}
