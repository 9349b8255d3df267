package orderbookv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

func testSymbol(tokenID string) enginev1.PredictionSymbol {
	return enginev1.NewPredictionSymbol(42, 1, tokenID)
}

func testOrder(t *testing.T, id string, side enginev1.OrderSide, price int32, quantity uint64, orderNum uint64) *enginev1.Order {
	t.Helper()
	order, err := enginev1.NewOrder(id, testSymbol("yes"), side, enginev1.TypeLimit, quantity, price, 7, "privy-7", "Yes")
	require.NoError(t, err)
	order.OrderNum = orderNum
	return order
}

func TestOrderBook_AddOrder(t *testing.T) {
	book := NewOrderBook(testSymbol("yes"))

	require.NoError(t, book.AddOrder(testOrder(t, "o1", enginev1.SideBuy, 6000, 500, 1)))
	require.NoError(t, book.AddOrder(testOrder(t, "o2", enginev1.SideBuy, 5500, 200, 2)))
	require.NoError(t, book.AddOrder(testOrder(t, "o3", enginev1.SideSell, 6500, 300, 3)))

	best, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, int32(6000), best)

	best, ok = book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int32(6500), best)

	assert.Equal(t, 3, book.OrderCount())
	assert.True(t, book.Contains("o2"))

	err := book.AddOrder(testOrder(t, "o1", enginev1.SideBuy, 6000, 500, 4))
	assert.Error(t, err)
}

func TestOrderBook_AddCrossOrder(t *testing.T) {
	// A buy of the complementary token at 6000 shows up here as a sell at 4000.
	book := NewOrderBook(testSymbol("yes"))
	cross := testOrder(t, "c1", enginev1.SideBuy, 6000, 500, 1)
	require.NoError(t, book.AddCrossOrder(cross))

	best, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int32(4000), best)

	_, ok = book.BestBid()
	assert.False(t, ok)

	got, ok := book.GetOrder("c1")
	require.True(t, ok)
	assert.Same(t, cross, got)
}

func TestOrderBook_LevelOrdering(t *testing.T) {
	book := NewOrderBook(testSymbol("yes"))
	require.NoError(t, book.AddOrder(testOrder(t, "b1", enginev1.SideBuy, 5000, 100, 1)))
	require.NoError(t, book.AddOrder(testOrder(t, "b2", enginev1.SideBuy, 6000, 100, 2)))
	require.NoError(t, book.AddOrder(testOrder(t, "b3", enginev1.SideBuy, 5500, 100, 3)))
	require.NoError(t, book.AddOrder(testOrder(t, "a1", enginev1.SideSell, 7000, 100, 4)))
	require.NoError(t, book.AddOrder(testOrder(t, "a2", enginev1.SideSell, 6500, 100, 5)))

	bids := book.Bids()
	require.Len(t, bids, 3)
	assert.Equal(t, int32(6000), bids[0].Price)
	assert.Equal(t, int32(5500), bids[1].Price)
	assert.Equal(t, int32(5000), bids[2].Price)

	asks := book.Asks()
	require.Len(t, asks, 2)
	assert.Equal(t, int32(6500), asks[0].Price)
	assert.Equal(t, int32(7000), asks[1].Price)
}

func TestOrderBook_SameLevelKeepsArrivalOrder(t *testing.T) {
	book := NewOrderBook(testSymbol("yes"))
	require.NoError(t, book.AddOrder(testOrder(t, "first", enginev1.SideBuy, 6000, 100, 1)))
	require.NoError(t, book.AddOrder(testOrder(t, "second", enginev1.SideBuy, 6000, 100, 2)))
	require.NoError(t, book.AddOrder(testOrder(t, "third", enginev1.SideBuy, 6000, 100, 3)))

	bids := book.Bids()
	require.Len(t, bids, 1)
	require.Len(t, bids[0].Orders, 3)
	assert.Equal(t, "first", bids[0].Orders[0].OrderID)
	assert.Equal(t, "second", bids[0].Orders[1].OrderID)
	assert.Equal(t, "third", bids[0].Orders[2].OrderID)
}

func TestOrderBook_RemoveOrder(t *testing.T) {
	book := NewOrderBook(testSymbol("yes"))
	require.NoError(t, book.AddOrder(testOrder(t, "o1", enginev1.SideBuy, 6000, 100, 1)))
	require.NoError(t, book.AddOrder(testOrder(t, "o2", enginev1.SideBuy, 6000, 200, 2)))

	removed, err := book.RemoveOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", removed.OrderID)
	assert.Equal(t, 1, book.OrderCount())

	// Removing the last order at a level drops the level itself.
	_, err = book.RemoveOrder("o2")
	require.NoError(t, err)
	assert.Empty(t, book.Bids())

	_, err = book.RemoveOrder("o2")
	assert.Error(t, err)
}

func TestOrderBook_SharedOrderVisibleInBothBooks(t *testing.T) {
	yes := NewOrderBook(testSymbol("yes"))
	no := NewOrderBook(testSymbol("no"))

	order := testOrder(t, "o1", enginev1.SideBuy, 6000, 500, 1)
	require.NoError(t, yes.AddOrder(order))
	require.NoError(t, no.AddCrossOrder(order))

	order.ApplyFill(200)

	yesSide, ok := yes.GetOrder("o1")
	require.True(t, ok)
	noSide, ok := no.GetOrder("o1")
	require.True(t, ok)
	assert.Equal(t, uint64(300), yesSide.RemainingQuantity)
	assert.Equal(t, uint64(300), noSide.RemainingQuantity)
	assert.Equal(t, enginev1.StatusPartiallyFilled, noSide.Status)
}

func TestOrderBook_Depth(t *testing.T) {
	book := NewOrderBook(testSymbol("yes"))
	require.NoError(t, book.AddOrder(testOrder(t, "b1", enginev1.SideBuy, 6000, 500, 1)))
	require.NoError(t, book.AddOrder(testOrder(t, "b2", enginev1.SideBuy, 6000, 250, 2)))
	require.NoError(t, book.AddOrder(testOrder(t, "b3", enginev1.SideBuy, 5500, 100, 3)))
	require.NoError(t, book.AddOrder(testOrder(t, "a1", enginev1.SideSell, 6500, 300, 4)))

	depth := book.Depth(0, 9)
	assert.Equal(t, uint64(9), depth.UpdateID)
	require.Len(t, depth.Bids, 2)
	require.Len(t, depth.Asks, 1)

	assert.Equal(t, "0.6", depth.Bids[0].Price)
	assert.Equal(t, int32(6000), depth.Bids[0].PriceI32)
	assert.Equal(t, "7.5", depth.Bids[0].TotalQuantity)
	assert.Equal(t, uint64(750), depth.Bids[0].TotalQuantityU64)
	assert.Equal(t, 2, depth.Bids[0].OrderCount)

	assert.Equal(t, "0.65", depth.Asks[0].Price)
	assert.Equal(t, "3", depth.Asks[0].TotalQuantity)

	limited := book.Depth(1, 10)
	assert.Len(t, limited.Bids, 1)
	assert.Len(t, limited.Asks, 1)
}

func TestOrderBook_Stats(t *testing.T) {
	book := NewOrderBook(testSymbol("yes"))
	require.NoError(t, book.AddOrder(testOrder(t, "b1", enginev1.SideBuy, 6000, 500, 1)))
	require.NoError(t, book.AddOrder(testOrder(t, "b2", enginev1.SideBuy, 5500, 100, 2)))
	require.NoError(t, book.AddOrder(testOrder(t, "a1", enginev1.SideSell, 6500, 300, 3)))

	stats := book.Stats()
	assert.Equal(t, 2, stats.BidLevels)
	assert.Equal(t, 1, stats.AskLevels)
	assert.Equal(t, 2, stats.TotalBidOrders)
	assert.Equal(t, 1, stats.TotalAskOrders)
	assert.Equal(t, uint64(600), stats.TotalBidQuantity)
	assert.Equal(t, uint64(300), stats.TotalAskQuantity)
}
