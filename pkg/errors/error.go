package errors

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal server error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralBadRequestError represents a generic bad request error.
	GeneralBadRequestError ErrorCode = "general_bad_request_error"
	// GeneralNotFoundError represents a generic not found error.
	GeneralNotFoundError ErrorCode = "general_not_found_error"

	// OrderUnknownSymbolError represents an order referencing an event, market or token the engine does not track.
	OrderUnknownSymbolError ErrorCode = "order_unknown_symbol_error"
	// OrderInvalidQuantityError represents an order with a quantity that is not valid for its kind.
	OrderInvalidQuantityError ErrorCode = "order_invalid_quantity_error"
	// OrderInvalidPriceError represents an order with a price outside the tradable range.
	OrderInvalidPriceError ErrorCode = "order_invalid_price_error"
	// OrderInvalidBudgetError represents a market buy without a positive budget.
	OrderInvalidBudgetError ErrorCode = "order_invalid_budget_error"
	// OrderInvalidUserError represents an order without a valid user id.
	OrderInvalidUserError ErrorCode = "order_invalid_user_error"
	// OrderNotFoundError represents a cancel for an order id that is not resting.
	OrderNotFoundError ErrorCode = "order_not_found_error"
	// OrderNotOwnedError represents a cancel requested by a user other than the order's owner.
	OrderNotOwnedError ErrorCode = "order_not_owned_error"
	// OrderSelfTradeError represents an order halted because it would trade against the same user.
	OrderSelfTradeError ErrorCode = "order_self_trade_error"
	// EngineStoppedError represents a command rejected while the engine is globally stopped.
	EngineStoppedError ErrorCode = "engine_stopped_error"
	// EventExpiredError represents a command against an event past its end time.
	EventExpiredError ErrorCode = "event_expired_error"

	// KafkaReadError represents an error when reading from an input topic.
	KafkaReadError ErrorCode = "kafka_read_error"
	// KafkaSetOffsetError represents an error when seeking an input topic reader.
	KafkaSetOffsetError ErrorCode = "kafka_set_offset_error"
	// KafkaCloseError represents an error when closing an input topic reader.
	KafkaCloseError ErrorCode = "kafka_close_error"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisDisconnectionError represents an error when disconnecting from Redis.
	RedisDisconnectionError ErrorCode = "redis_disconnection_error"
	// RedisPingError represents an error when pinging Redis.
	RedisPingError ErrorCode = "redis_pinging_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisDelError represents an error when deleting a value from Redis.
	RedisDelError ErrorCode = "redis_del_error"
	// RedisXAddError represents an error when adding entries to a stream in Redis.
	RedisXAddError ErrorCode = "redis_xadd_error"
	// RedisXLenError represents an error when getting the length of a stream in Redis.
	RedisXLenError ErrorCode = "redis_xlen_error"
	// RedisXReadError represents an error when reading from a stream in Redis.
	RedisXReadError ErrorCode = "redis_xread_error"
	// RedisXTrimError represents an error when trimming a stream in Redis.
	RedisXTrimError ErrorCode = "redis_xtrim_error"
	// RedisXDelError represents an error when deleting entries from a stream in Redis.
	RedisXDelError ErrorCode = "redis_xdel_error"

	// SnapshotMarshalError represents an error when serializing the snapshot document.
	SnapshotMarshalError ErrorCode = "snapshot_marshal_error"
	// SnapshotUnmarshalError represents an error when deserializing the snapshot document.
	SnapshotUnmarshalError ErrorCode = "snapshot_unmarshal_error"
	// SnapshotWriteError represents an error when persisting the snapshot file.
	SnapshotWriteError ErrorCode = "snapshot_write_error"
	// SnapshotReadError represents an error when loading the snapshot file.
	SnapshotReadError ErrorCode = "snapshot_read_error"
)

// String returns the error code as a plain string.
func (c ErrorCode) String() string {
	return string(c)
}
