package matching

import (
	outputv1 "github.com/purplecity/PredictionMarket/internal/domain/output/v1"
)

//go:generate mockgen -source sink.go -destination=mock/sink_mock.go -package=matching_mock

// Sink receives everything a market engine emits. Implementations must not
// block the caller; the engine goroutine is the matching hot path.
type Sink interface {
	PublishProcessor(msg outputv1.ProcessorMessage)
	PublishStore(event *outputv1.OrderChangeEvent)
	PublishDepth(depth *outputv1.WebSocketDepth)
	PublishPriceChanges(changes *outputv1.WebSocketPriceChanges)
	// OrderProcessed reports that the command read from the given input log
	// offset has been fully handled, store events included.
	OrderProcessed(logOffset int64)
}
