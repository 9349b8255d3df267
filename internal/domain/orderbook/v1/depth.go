package orderbookv1

import (
	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

// PriceLevel is one aggregated price step of a depth snapshot. The formatted
// strings are what downstream consumers render; the raw grid values are kept
// for diffing successive snapshots.
type PriceLevel struct {
	Price            string `json:"price"`
	PriceI32         int32  `json:"price_i32"`
	TotalQuantity    string `json:"total_quantity"`
	TotalQuantityU64 uint64 `json:"total_quantity_u64"`
	OrderCount       int    `json:"order_count"`
}

// OrderBookDepth is a point-in-time aggregated view of one token's book.
// Bids are ordered from high to low price, asks from low to high.
type OrderBookDepth struct {
	Symbol    enginev1.PredictionSymbol `json:"symbol"`
	Bids      []PriceLevel              `json:"bids"`
	Asks      []PriceLevel              `json:"asks"`
	Timestamp int64                     `json:"timestamp"`
	UpdateID  uint64                    `json:"update_id"`
}

// OrderBookStats summarizes the book for logging and tests.
type OrderBookStats struct {
	Symbol           enginev1.PredictionSymbol `json:"symbol"`
	BidLevels        int                       `json:"bid_levels"`
	AskLevels        int                       `json:"ask_levels"`
	TotalBidOrders   int                       `json:"total_bid_orders"`
	TotalAskOrders   int                       `json:"total_ask_orders"`
	TotalBidQuantity uint64                    `json:"total_bid_quantity"`
	TotalAskQuantity uint64                    `json:"total_ask_quantity"`
}
