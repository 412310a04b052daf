package events

import (
	"time"

	"azlema-core/internal/strategy"
)

// Topic enumerates the event streams flowing from the trader to the
// dashboard and persistence layers.
type Topic string

const (
	TopicCandle Topic = "candle"
	TopicTrade  Topic = "trade"
	TopicStatus Topic = "status"
	TopicLog    Topic = "log"
)

// TradePayload wraps an engine trade event with its instrument.
type TradePayload struct {
	Symbol string              `json:"symbol"`
	Event  strategy.TradeEvent `json:"event"`
	Live   bool                `json:"live"`
}

// StatusPayload is the periodic runtime snapshot.
type StatusPayload struct {
	Running      bool      `json:"running"`
	Mode         string    `json:"mode"`
	Symbol       string    `json:"symbol"`
	Period       int       `json:"period"`
	EC           float64   `json:"ec"`
	EMA          float64   `json:"ema"`
	PositionSize float64   `json:"position_size"`
	EntryPrice   float64   `json:"entry_price"`
	Balance      float64   `json:"balance"`
	NetProfit    float64   `json:"net_profit"`
	Time         time.Time `json:"time"`
}

// LogPayload is one captured log line for the dashboard tail.
type LogPayload struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}
