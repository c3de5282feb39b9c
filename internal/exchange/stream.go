package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// CandleSink receives live candle updates from the stream.
type CandleSink interface {
	ApplyCandle(symbol, timeframe string, candle Candle)
}

// Stream maintains a WebSocket subscription to the exchange kline channel and
// pushes updates into a CandleSink, keeping the market cache warm between
// REST refreshes. It reconnects with backoff until the context is canceled.
type Stream struct {
	url       string
	symbol    string
	timeframe string
	sink      CandleSink
	logger    zerolog.Logger
}

func NewStream(url, symbol, timeframe string, sink CandleSink, logger zerolog.Logger) *Stream {
	return &Stream{
		url:       url,
		symbol:    symbol,
		timeframe: timeframe,
		sink:      sink,
		logger:    logger,
	}
}

// Run blocks until ctx is canceled, reconnecting on any read or dial failure.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("candle stream disconnected, reconnecting")

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

func (s *Stream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing stream: %w", err)
	}
	defer conn.Close()

	channel := fmt.Sprintf("spot@public.kline.v3.api@%s@%s", s.symbol, streamInterval(s.timeframe))
	sub := map[string]interface{}{
		"method": "SUBSCRIPTION",
		"params": []string{channel},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	s.logger.Info().Str("channel", channel).Msg("candle stream subscribed")

	// The server drops connections that go 60s without a ping.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.WriteJSON(map[string]string{"method": "PING"})
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		s.handleMessage(msg)
	}
}

func (s *Stream) handleMessage(msg []byte) {
	var payload struct {
		Channel string `json:"c"`
		Symbol  string `json:"s"`
		Data    struct {
			Kline struct {
				OpenTime  int64       `json:"t"`
				CloseTime int64       `json:"T"`
				Open      json.Number `json:"o"`
				High      json.Number `json:"h"`
				Low       json.Number `json:"l"`
				Close     json.Number `json:"c"`
				Volume    json.Number `json:"v"`
			} `json:"k"`
		} `json:"d"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return
	}
	k := payload.Data.Kline
	if k.OpenTime == 0 {
		// PONG or subscription ack.
		return
	}

	candle := Candle{
		OpenTime:  k.OpenTime * 1000,
		Open:      numberToFloat(k.Open),
		High:      numberToFloat(k.High),
		Low:       numberToFloat(k.Low),
		Close:     numberToFloat(k.Close),
		Volume:    numberToFloat(k.Volume),
		CloseTime: k.CloseTime * 1000,
	}
	s.sink.ApplyCandle(s.symbol, s.timeframe, candle)
}

func numberToFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}

// streamInterval maps REST timeframes onto the stream channel naming.
func streamInterval(tf string) string {
	switch tf {
	case "1m":
		return "Min1"
	case "5m":
		return "Min5"
	case "15m":
		return "Min15"
	case "30m":
		return "Min30"
	case "1h":
		return "Min60"
	case "4h":
		return "Hour4"
	case "1d":
		return "Day1"
	}
	return "Min15"
}
