package spin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/spin-perp/internal/metrics"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/gorilla/websocket"
)

const (
	bookL1Channel = "book_L1"

	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 30 * time.Second
	wsPingInterval     = 15 * time.Second
	wsMinBackoff       = time.Second
	wsMaxBackoff       = 30 * time.Second

	subscribeRequestId = 1
)

type wsRequest struct {
	Id     int64             `json:"id"`
	Method string            `json:"method"`
	Params wsSubscribeParams `json:"params"`
}

type wsSubscribeParams struct {
	Channel   string   `json:"channel"`
	MarketIds []uint64 `json:"market_ids"`
}

// wsMessage 订阅应答带 id, 推送带 channel
type wsMessage struct {
	Id      int64           `json:"id"`
	Channel string          `json:"channel"`
	Ok      bool            `json:"ok"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type bookL1View struct {
	MarketId  uint64     `json:"market_id"`
	Ask       *levelView `json:"ask"`
	Bid       *levelView `json:"bid"`
	Timestamp string     `json:"timestamp"` // 纳秒
}

func (v bookL1View) toBookL1() exchange.BookL1 {
	l1 := exchange.BookL1{
		MarketId:  exchange.MarketId(v.MarketId),
		Timestamp: parseNanos(v.Timestamp),
	}
	if v.Ask != nil {
		l1.Ask = &exchange.BookLevel{Price: v.Ask.Price, Quantity: v.Ask.Quantity}
	}
	if v.Bid != nil {
		l1.Bid = &exchange.BookLevel{Price: v.Bid.Price, Quantity: v.Bid.Quantity}
	}
	if l1.Timestamp.IsZero() {
		l1.Timestamp = time.Now()
	}
	return l1
}

// subscribeBookL1 首次连接失败直接返回错误, 之后断线按指数退避重连, 直到 ctx 结束
func subscribeBookL1(ctx context.Context, url string, id exchange.MarketId) (<-chan exchange.BookL1, error) {
	if url == "" {
		return nil, errors.New("spin: websocket url not configured")
	}
	conn, err := dialBookL1(ctx, url, id)
	if err != nil {
		return nil, err
	}

	ch := make(chan exchange.BookL1, 16)
	go func() {
		defer close(ch)
		backoff := wsMinBackoff
		for {
			err := consumeBookL1(ctx, conn, id, ch)
			if ctx.Err() != nil {
				return
			}
			slog.Warn("spin book L1 stream disconnected, retrying", "market", id, "error", err)

			for {
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				metrics.WSReconnectsTotal.Inc()
				conn, err = dialBookL1(ctx, url, id)
				if err == nil {
					backoff = wsMinBackoff
					break
				}
				if ctx.Err() != nil {
					return
				}
				backoff = min(backoff*2, wsMaxBackoff)
				slog.Warn("spin book L1 redial failed", "market", id, "error", err, "backoff", backoff)
			}
		}
	}()
	return ch, nil
}

func dialBookL1(ctx context.Context, url string, id exchange.MarketId) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	sub := wsRequest{
		Id:     subscribeRequestId,
		Method: "subscribe",
		Params: wsSubscribeParams{Channel: bookL1Channel, MarketIds: []uint64{uint64(id)}},
	}
	if err = conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ws subscribe: %w", err)
	}

	// 等待订阅应答, ctx 结束时关闭连接打断 ReadJSON
	acked := make(chan struct{})
	defer close(acked)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-acked:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	for {
		var msg wsMessage
		if err = conn.ReadJSON(&msg); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ws subscribe ack: %w", ctx.Err())
			}
			return nil, fmt.Errorf("ws subscribe ack: %w", err)
		}
		if msg.Id != subscribeRequestId {
			continue
		}
		if !msg.Ok {
			conn.Close()
			return nil, fmt.Errorf("ws subscribe %s rejected: %s", bookL1Channel, msg.Error)
		}
		break
	}
	slog.Info("subscribed spin book L1", "market", id)
	return conn, nil
}

// consumeBookL1 返回时连接已关闭
func consumeBookL1(ctx context.Context, conn *websocket.Conn, id exchange.MarketId, out chan<- exchange.BookL1) error {
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					slog.Warn("spin ws ping failed", "error", err)
					return
				}
			case <-ctx.Done():
				// 打断阻塞中的 ReadMessage
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsMessage
		if err = json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("failed to decode spin ws message", "error", err)
			continue
		}
		if msg.Channel != bookL1Channel || len(msg.Data) == 0 {
			continue
		}
		if !msg.Ok {
			slog.Warn("spin book L1 notify error", "market", id, "error", msg.Error)
			continue
		}

		var view bookL1View
		if err = json.Unmarshal(msg.Data, &view); err != nil {
			slog.Warn("failed to decode spin book L1", "error", err)
			continue
		}
		metrics.BookL1NotificationsTotal.WithLabelValues(id.ToString()).Inc()

		select {
		case out <- view.toBookL1():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
