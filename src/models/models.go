package models

// SubmitOrderRequest carries the fields of one order message. TradeID is
// generated for NEW orders when empty, Price is a decimal string and
// TradeTime defaults to now.
type SubmitOrderRequest struct {
	TradeID    string `json:"trade_id"`
	Instrument string `json:"bbg_code"`
	Currency   string `json:"currency"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Volume     int64  `json:"volume"`
	Portfolio  string `json:"portfolio"`
	Action     string `json:"action"`
	Account    string `json:"account"`
	Strategy   string `json:"strategy"`
	User       string `json:"user"`
	TradeTime  string `json:"trade_time_utc,omitempty"`
	ValueDate  string `json:"value_date,omitempty"`
}

type SubmitOrderResponse struct {
	TradeID         string     `json:"trade_id"`
	Status          string     `json:"status"`
	Message         string     `json:"message,omitempty"`
	FilledVolume    int64      `json:"filled_volume"`
	RemainingVolume int64      `json:"remaining_volume"`
	CancelledVolume int64      `json:"cancelled_volume,omitempty"`
	Fills           []FillInfo `json:"fills,omitempty"`
}

type FillInfo struct {
	FillID    string `json:"fill_id"`
	RestingID string `json:"resting_trade_id"`
	Price     string `json:"price"`
	Volume    int64  `json:"volume"`
	Timestamp int64  `json:"timestamp"` // unix timestamp in milliseconds
}

type SubmitMessagesResponse struct {
	Received int              `json:"received"`
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Errors   []string         `json:"errors,omitempty"`
	Results  []MessageOutcome `json:"results"`
}

type MessageOutcome struct {
	TradeID         string `json:"trade_id"`
	Status          string `json:"status,omitempty"`
	Error           string `json:"error,omitempty"`
	FilledVolume    int64  `json:"filled_volume"`
	RemainingVolume int64  `json:"remaining_volume"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

type OrderBookResponse struct {
	Instrument string           `json:"bbg_code"`
	Timestamp  int64            `json:"timestamp"` // unix timestamp in milliseconds
	Bids       []PriceLevelInfo `json:"bids"`      // sorted descending (highest first)
	Asks       []PriceLevelInfo `json:"asks"`      // sorted ascending (lowest first)
}

type PriceLevelInfo struct {
	Price  string `json:"price"`
	Volume int64  `json:"volume"` // aggregated volume at this price
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Instruments   int    `json:"instruments"`
	OrdersResting int    `json:"orders_resting"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersRejected         int64   `json:"orders_rejected"`
	OrdersMatched          int64   `json:"orders_matched"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	OrdersResting          int64   `json:"orders_resting"`
	FillsExecuted          int64   `json:"fills_executed"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	LatencyP999Ms          float64 `json:"latency_p999_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
