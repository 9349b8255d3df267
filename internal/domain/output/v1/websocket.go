package outputv1

import (
	orderbookv1 "github.com/purplecity/PredictionMarket/internal/domain/orderbook/v1"
)

// PriceLevelInfo is one changed price level in a websocket update. Quantity
// "0" means the level disappeared.
type PriceLevelInfo struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// SingleTokenPriceInfo carries the per-token part of a price change update.
type SingleTokenPriceInfo struct {
	TokenID string `json:"token_id"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
	// LatestTradePrice is the price of the most recent fill on this token,
	// empty until the first trade.
	LatestTradePrice string           `json:"latest_trade_price"`
	Bids             []PriceLevelInfo `json:"bids"`
	Asks             []PriceLevelInfo `json:"asks"`
}

// WebSocketPriceChanges is the websocket stream payload for one market tick.
// Only tokens whose levels changed since the previous tick are included.
type WebSocketPriceChanges struct {
	EventID   int64                  `json:"event_id"`
	MarketID  int16                  `json:"market_id"`
	Tokens    []SingleTokenPriceInfo `json:"tokens"`
	Timestamp int64                  `json:"timestamp"`
	UpdateID  uint64                 `json:"update_id"`
}

// HashKey partitions the websocket stream by market.
func (w *WebSocketPriceChanges) HashKey() string {
	return marketHashKeyParts(w.EventID, w.MarketID)
}

// TokenDepth is one token's aggregated book together with the price of its
// most recent fill, empty until the first trade.
type TokenDepth struct {
	orderbookv1.OrderBookDepth
	LatestTradePrice string `json:"latest_trade_price"`
}

// WebSocketDepth is the depth stream payload and depth cache value: the full
// aggregated books of both tokens of one market.
type WebSocketDepth struct {
	EventID   int64        `json:"event_id"`
	MarketID  int16        `json:"market_id"`
	Tokens    []TokenDepth `json:"tokens"`
	Timestamp int64        `json:"timestamp"`
	UpdateID  uint64       `json:"update_id"`
}

// HashKey partitions the depth stream by market.
func (w *WebSocketDepth) HashKey() string {
	return marketHashKeyParts(w.EventID, w.MarketID)
}
