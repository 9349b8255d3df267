package enginev1

import (
	"fmt"
	"strconv"
	"strings"
)

// SymbolSeparator joins the symbol parts in the string form of a PredictionSymbol.
const SymbolSeparator = "-*******-"

const (
	// PriceScale is the fixed-point multiplier for prices (4 decimals).
	PriceScale int32 = 10000
	// QuantityScale is the fixed-point multiplier for share quantities (2 decimals).
	QuantityScale uint64 = 100
	// QuoteScale is the fixed-point multiplier for quote (USDC) amounts (6 decimals).
	QuoteScale int64 = 1_000_000

	// MinPrice is the lowest tradable price on the grid.
	MinPrice int32 = 10
	// MaxPrice is the highest tradable price on the grid.
	MaxPrice int32 = 9990
)

// PredictionSymbol identifies one outcome token of one market of one event.
type PredictionSymbol struct {
	EventID  int64  `json:"event_id"`
	MarketID int16  `json:"market_id"`
	TokenID  string `json:"token_id"`
}

// NewPredictionSymbol builds a symbol from its three parts.
func NewPredictionSymbol(eventID int64, marketID int16, tokenID string) PredictionSymbol {
	return PredictionSymbol{EventID: eventID, MarketID: marketID, TokenID: tokenID}
}

// String renders the symbol as event, market and token joined by SymbolSeparator.
func (s PredictionSymbol) String() string {
	return fmt.Sprintf("%d%s%d%s%s", s.EventID, SymbolSeparator, s.MarketID, SymbolSeparator, s.TokenID)
}

// MarketKey returns the event/market part of the symbol, shared by both tokens.
func (s PredictionSymbol) MarketKey() string {
	return MarketKey(s.EventID, s.MarketID)
}

// MarketKey builds the routing key for one market of one event.
func MarketKey(eventID int64, marketID int16) string {
	return fmt.Sprintf("%d%s%d", eventID, SymbolSeparator, marketID)
}

// ParsePredictionSymbol parses the string form produced by String.
func ParsePredictionSymbol(s string) (PredictionSymbol, error) {
	parts := strings.Split(s, SymbolSeparator)
	if len(parts) != 3 {
		return PredictionSymbol{}, fmt.Errorf("invalid symbol format: %s", s)
	}

	eventID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return PredictionSymbol{}, fmt.Errorf("invalid event id in symbol %s: %w", s, err)
	}

	marketID, err := strconv.ParseInt(parts[1], 10, 16)
	if err != nil {
		return PredictionSymbol{}, fmt.Errorf("invalid market id in symbol %s: %w", s, err)
	}

	return PredictionSymbol{EventID: eventID, MarketID: int16(marketID), TokenID: parts[2]}, nil
}

// ComplementPrice converts a price into the equivalent price of the
// complementary outcome token. Buying one token at p is the same position as
// selling the other at PriceScale - p.
func ComplementPrice(price int32) int32 {
	return PriceScale - price
}
