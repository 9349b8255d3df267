package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"

	enginev1 "github.com/purplecity/PredictionMarket/internal/domain/engine/v1"
)

// Load generator for local testing. Registers one event on the event topic
// and then streams random order commands at it.

func generateOrders(count int, eventID int64, marketID int16, tokens []string, outcomes []string) []enginev1.SubmitOrderMessage {
	orders := make([]enginev1.SubmitOrderMessage, count)

	for i := 0; i < count; i++ {
		// 70% limit, 30% market.
		orderType := enginev1.TypeLimit
		if rand.Float64() < 0.3 {
			orderType = enginev1.TypeMarket
		}

		side := enginev1.SideBuy
		if rand.Float64() < 0.5 {
			side = enginev1.SideSell
		}

		tokenIdx := rand.Intn(len(tokens))
		symbol := enginev1.NewPredictionSymbol(eventID, marketID, tokens[tokenIdx])

		// Prices cluster around the middle of the grid.
		price := int32(3000 + rand.Intn(4000))
		quantity := uint64((rand.Intn(100) + 1) * 100)

		msg := enginev1.SubmitOrderMessage{
			Types:       enginev1.TypeSubmitOrder,
			OrderID:     ulid.Make().String(),
			Symbol:      symbol,
			Side:        side,
			Type:        orderType,
			Quantity:    quantity,
			Price:       price,
			UserID:      int64(rand.Intn(50) + 1),
			OutcomeName: outcomes[tokenIdx],
		}

		if orderType == enginev1.TypeMarket && side == enginev1.SideBuy {
			// Market buys carry a budget instead of a quantity.
			msg.Quantity = 0
			msg.Price = 0
			msg.Budget = enginev1.QuoteMicros(price, quantity)
		}

		orders[i] = msg
	}

	return orders
}

func main() {
	var (
		brokers    = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		orderTopic = flag.String("order-topic", "order-input", "order input topic")
		eventTopic = flag.String("event-topic", "event-input", "event input topic")
		delay      = flag.Duration("delay", 100*time.Millisecond, "Delay between sending orders")
		count      = flag.Int("count", 1000, "Number of orders to generate")
		eventID    = flag.Int64("event-id", 10, "event id to register and trade")
		marketID   = flag.Int("market-id", 1, "market id within the event")
	)
	flag.Parse()

	tokens := []string{"yes", "no"}
	outcomes := []string{"Yes", "No"}

	ctx := context.Background()

	eventWriter := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *eventTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	create := enginev1.EventCreateMessage{
		Types:   enginev1.TypeAddOneEvent,
		EventID: *eventID,
		Markets: map[string]enginev1.EventMarket{
			"1": {MarketID: int16(*marketID), Outcomes: outcomes, TokenIDs: tokens},
		},
	}
	createJSON, err := json.Marshal(create)
	if err != nil {
		log.Fatalf("Failed to marshal event create: %v", err)
	}
	if err := eventWriter.WriteMessages(ctx, kafka.Message{Value: createJSON, Time: time.Now()}); err != nil {
		log.Fatalf("Failed to register event: %v", err)
	}
	eventWriter.Close()
	log.Printf("Registered event %d with market %d on topic %s", *eventID, *marketID, *eventTopic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *orderTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	log.Printf("Generating %d orders...", *count)
	orders := generateOrders(*count, *eventID, int16(*marketID), tokens, outcomes)

	log.Printf("Sending orders to Kafka broker: %s, topic: %s", *brokers, *orderTopic)
	log.Printf("Delay between orders: %v", *delay)

	for i, order := range orders {
		orderJSON, err := json.Marshal(order)
		if err != nil {
			log.Printf("Failed to marshal order %d: %v", i+1, err)
			continue
		}

		msg := kafka.Message{
			Key:   []byte(order.OrderID),
			Value: orderJSON,
			Time:  time.Now(),
		}

		if err := writer.WriteMessages(ctx, msg); err != nil {
			log.Printf("Failed to send order %d (%s): %v", i+1, order.OrderID, err)
			continue
		}

		if (i+1)%100 == 0 || i == len(orders)-1 {
			log.Printf("Sent order %d/%d: %s | %s %s %s | qty %d @ %d",
				i+1, len(orders), order.OrderID, order.Symbol.TokenID,
				order.Type, order.Side, order.Quantity, order.Price)
		}

		if i < len(orders)-1 {
			time.Sleep(*delay)
		}
	}

	log.Printf("Successfully sent all %d orders!", len(orders))

	marketOrders := 0
	limitOrders := 0
	buyOrders := 0
	sellOrders := 0

	for _, order := range orders {
		if order.Type == enginev1.TypeMarket {
			marketOrders++
		} else {
			limitOrders++
		}
		if order.Side == enginev1.SideBuy {
			buyOrders++
		} else {
			sellOrders++
		}
	}

	log.Printf("--- Summary ---")
	log.Printf("Total Orders: %d", len(orders))
	log.Printf("Market Orders: %d", marketOrders)
	log.Printf("Limit Orders: %d", limitOrders)
	log.Printf("Buy Orders: %d", buyOrders)
	log.Printf("Sell Orders: %d", sellOrders)
}
