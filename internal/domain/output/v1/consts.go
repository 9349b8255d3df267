package outputv1

// Redis stream names and the field key each payload is written under.
const (
	StoreStream = "store_stream"
	StoreKey    = "store_key"

	ProcessorStream = "processor_stream"
	ProcessorKey    = "processor_key"

	DepthStream = "depth_stream"
	DepthKey    = "depth_key"

	WebsocketStream = "websocket_stream"
	WebsocketKey    = "websocket_key"
)

// WebsocketStreamMaxLen caps the websocket stream; trimming is approximate.
const WebsocketStreamMaxLen = 10000

// DepthCachePrefix prefixes the per-market key holding the latest depth.
const DepthCachePrefix = "depth:"
