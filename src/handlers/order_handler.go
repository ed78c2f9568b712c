package handlers

import (
	"bytes"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"trading-venue/src/codec"
	"trading-venue/src/config"
	"trading-venue/src/engine"
	"trading-venue/src/models"
)

type OrderHandler struct {
	Venue           *engine.Venue
	StartTime       time.Time
	OrdersReceived  int64
	OrdersRejected  int64
	OrdersMatched   int64
	OrdersCancelled int64
	FillsExecuted   int64

	depth        config.OrderBookConfig
	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewOrderHandler(venue *engine.Venue, cfg *config.Config) *OrderHandler {
	return &OrderHandler{
		Venue:        venue,
		StartTime:    time.Now(),
		depth:        cfg.OrderBook,
		latencies:    make([]time.Duration, 0, cfg.Metrics.MaxLatencies),
		maxLatencies: cfg.Metrics.MaxLatencies,
	}
}

// SubmitOrder accepts one order message as JSON.
func (h *OrderHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	order, err := orderFromRequest(&req)
	if err != nil {
		atomic.AddInt64(&h.OrdersRejected, 1)
		log.Warn().
			Err(err).
			Str("trade_id", req.TradeID).
			Str("bbg_code", req.Instrument).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse(err))
	}

	log.Info().
		Str("trade_id", order.TradeID).
		Str("bbg_code", order.Instrument).
		Str("side", string(order.Side)).
		Str("action", string(order.Action)).
		Str("price", order.Price.String()).
		Int64("volume", order.RemainingVolume()).
		Str("ip", c.IP()).
		Msg("Order submitted")

	result, err := h.submit(order)
	if err != nil {
		return h.rejection(c, order, err)
	}

	response := models.SubmitOrderResponse{
		TradeID:         order.TradeID,
		Status:          string(result.Status),
		FilledVolume:    result.FilledVolume,
		RemainingVolume: result.RemainingVolume,
		CancelledVolume: result.CancelledVolume,
		Fills:           fillInfos(result.Fills),
	}

	log.Info().
		Str("trade_id", order.TradeID).
		Str("status", string(result.Status)).
		Int64("filled_volume", result.FilledVolume).
		Int64("remaining_volume", result.RemainingVolume).
		Int("fills_count", len(result.Fills)).
		Msg("Order processed")

	switch result.Status {
	case engine.StatusAccepted:
		response.Message = "Order added to book"
		return c.Status(fiber.StatusCreated).JSON(response)
	case engine.StatusPartialFill:
		return c.Status(fiber.StatusAccepted).JSON(response)
	default:
		return c.Status(fiber.StatusOK).JSON(response)
	}
}

// SubmitMessages accepts a text body of comma-separated order messages and
// submits them in order. Pass header=true when the first line is a header.
func (h *OrderHandler) SubmitMessages(c *fiber.Ctx) error {
	hasHeader := c.QueryBool("header", false)

	orders, parseErr := codec.ReadMessages(bytes.NewReader(c.Body()), hasHeader)

	response := models.SubmitMessagesResponse{
		Results: make([]models.MessageOutcome, 0, len(orders)),
	}
	if parseErr != nil {
		for _, err := range unjoin(parseErr) {
			response.Errors = append(response.Errors, err.Error())
			response.Rejected++
			atomic.AddInt64(&h.OrdersRejected, 1)
		}
	}

	for _, order := range orders {
		outcome := models.MessageOutcome{TradeID: order.TradeID}
		result, err := h.submit(order)
		if err != nil {
			atomic.AddInt64(&h.OrdersRejected, 1)
			outcome.Error = err.Error()
			response.Rejected++
		} else {
			outcome.Status = string(result.Status)
			outcome.FilledVolume = result.FilledVolume
			outcome.RemainingVolume = result.RemainingVolume
			response.Accepted++
		}
		response.Results = append(response.Results, outcome)
	}
	response.Received = response.Accepted + response.Rejected

	log.Info().
		Int("received", response.Received).
		Int("accepted", response.Accepted).
		Int("rejected", response.Rejected).
		Str("ip", c.IP()).
		Msg("Order messages processed")

	return c.Status(fiber.StatusOK).JSON(response)
}

// CancelOrder cancels a resting order identified by instrument, side and
// trade ID.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	side, ok := engine.ParseSide(c.Params("side"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid side: must be B or S",
		})
	}

	order := engine.NewOrder(c.Params("id"), c.Params("instrument"), side, engine.ActionCancel, decimal.Zero, 0, time.Now())

	result, err := h.submit(order)
	if err != nil {
		return h.rejection(c, order, err)
	}

	log.Info().
		Str("trade_id", order.TradeID).
		Str("bbg_code", order.Instrument).
		Int64("cancelled_volume", result.CancelledVolume).
		Str("ip", c.IP()).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(models.SubmitOrderResponse{
		TradeID:         order.TradeID,
		Status:          string(result.Status),
		CancelledVolume: result.CancelledVolume,
	})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	side, ok := engine.ParseSide(c.Params("side"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid side: must be B or S",
		})
	}

	book, ok := h.Venue.Book(c.Params("instrument"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found",
		})
	}
	order, ok := book.GetOrder(side, c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.SubmitOrderRequest{
		TradeID:    order.TradeID,
		Instrument: order.Instrument,
		Currency:   order.Currency,
		Side:       string(order.Side),
		Price:      order.Price.String(),
		Volume:     order.RemainingVolume(),
		Portfolio:  order.Portfolio,
		Action:     string(order.Action),
		Account:    order.Account,
		Strategy:   order.Strategy,
		User:       order.User,
		TradeTime:  order.TradeTime.Format(codec.TradeTimeLayout),
		ValueDate:  order.ValueDate,
	})
}

// GetAggregation renders one aggregation report as CSV. The side query
// parameter defaults to bids.
func (h *OrderHandler) GetAggregation(c *fiber.Ctx) error {
	attr, err := engine.ParseAttribute(c.Params("by"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	side, ok := engine.ParseSide(c.Query("side", "B"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid side: must be B or S",
		})
	}

	rows := h.Venue.AggregateBy(attr, side)

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+codec.ReportFileName(attr, side)+`"`)
	return c.Status(fiber.StatusOK).SendString(codec.RenderReport(attr, rows))
}

func (h *OrderHandler) GetOrderBook(c *fiber.Ctx) error {
	instrument := c.Params("instrument")

	depth := c.QueryInt("depth", h.depth.DefaultDepth)
	if depth <= 0 {
		depth = h.depth.DefaultDepth
	}
	// edge case: enforce maximum depth limit
	if depth > h.depth.MaxDepth {
		depth = h.depth.MaxDepth
	}

	bids, asks := h.Venue.Depth(instrument, depth)

	return c.Status(fiber.StatusOK).JSON(models.OrderBookResponse{
		Instrument: instrument,
		Timestamp:  time.Now().UnixMilli(),
		Bids:       levelInfos(bids),
		Asks:       levelInfos(asks),
	})
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		Instruments:   len(h.Venue.Instruments()),
		OrdersResting: h.Venue.RestingCount(),
	})
}

func (h *OrderHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersRejected:         atomic.LoadInt64(&h.OrdersRejected),
		OrdersMatched:          atomic.LoadInt64(&h.OrdersMatched),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		OrdersResting:          int64(h.Venue.RestingCount()),
		FillsExecuted:          atomic.LoadInt64(&h.FillsExecuted),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		LatencyP999Ms:          p999,
		ThroughputOrdersPerSec: h.calculateThroughput(),
	})
}

// submit runs one order through the venue and records metrics.
func (h *OrderHandler) submit(order *engine.Order) (*engine.ProcessResult, error) {
	atomic.AddInt64(&h.OrdersReceived, 1)

	start := time.Now()
	result, err := h.Venue.Submit(order)
	h.recordLatency(time.Since(start))

	if err != nil {
		return nil, err
	}

	if result.FilledVolume > 0 {
		atomic.AddInt64(&h.OrdersMatched, 1)
	}
	if result.CancelledVolume > 0 {
		atomic.AddInt64(&h.OrdersCancelled, 1)
	}
	atomic.AddInt64(&h.FillsExecuted, int64(len(result.Fills)))

	return result, nil
}

func (h *OrderHandler) rejection(c *fiber.Ctx, order *engine.Order, err error) error {
	atomic.AddInt64(&h.OrdersRejected, 1)

	if errors.Is(err, engine.ErrUnknownOrder) {
		log.Warn().
			Str("trade_id", order.TradeID).
			Str("bbg_code", order.Instrument).
			Str("side", string(order.Side)).
			Str("action", string(order.Action)).
			Msg("Order not found")
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: err.Error(),
			Kind:  "UNKNOWN_ORDER",
		})
	}

	log.Error().
		Err(err).
		Str("trade_id", order.TradeID).
		Str("bbg_code", order.Instrument).
		Msg("Error processing order")
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: "Internal server error",
	})
}

func (h *OrderHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *OrderHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)
	h.latenciesMu.RUnlock()

	if len(latenciesCopy) == 0 {
		return 0, 0, 0
	}

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	percentile := func(p float64) float64 {
		idx := int(float64(len(latenciesCopy)) * p)
		// edge case: ensure index is within bounds
		if idx >= len(latenciesCopy) {
			idx = len(latenciesCopy) - 1
		}
		return float64(latenciesCopy[idx].Nanoseconds()) / 1e6
	}

	return percentile(0.50), percentile(0.99), percentile(0.999)
}

func (h *OrderHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}

// orderFromRequest validates a JSON request through the message codec so
// both inbound paths report the same malformed-field kinds.
func orderFromRequest(req *models.SubmitOrderRequest) (*engine.Order, error) {
	if req.TradeID == "" {
		if action, ok := engine.ParseAction(req.Action); ok && action == engine.ActionNew {
			req.TradeID = uuid.New().String()
		}
	}
	if req.TradeTime == "" {
		req.TradeTime = time.Now().UTC().Format(codec.TradeTimeLayout)
	}

	return codec.ParseFields([]string{
		req.TradeID,
		req.Instrument,
		req.Currency,
		req.Side,
		req.Price,
		strconv.FormatInt(req.Volume, 10),
		req.Portfolio,
		req.Action,
		req.Account,
		req.Strategy,
		req.User,
		req.TradeTime,
		req.ValueDate,
	})
}

func errorResponse(err error) models.ErrorResponse {
	var mm *codec.MalformedMessageError
	if errors.As(err, &mm) {
		return models.ErrorResponse{
			Error: err.Error(),
			Kind:  string(mm.Kind),
			Field: mm.Field,
		}
	}
	return models.ErrorResponse{Error: err.Error()}
}

func fillInfos(fills []*engine.Fill) []models.FillInfo {
	infos := make([]models.FillInfo, 0, len(fills))
	for _, fill := range fills {
		infos = append(infos, models.FillInfo{
			FillID:    fill.FillID,
			RestingID: fill.RestingID,
			Price:     fill.Price.String(),
			Volume:    fill.Volume,
			Timestamp: fill.Timestamp,
		})
	}
	return infos
}

func levelInfos(levels []engine.PriceLevel) []models.PriceLevelInfo {
	infos := make([]models.PriceLevelInfo, 0, len(levels))
	for _, lvl := range levels {
		infos = append(infos, models.PriceLevelInfo{
			Price:  lvl.Price.String(),
			Volume: lvl.Volume,
		})
	}
	return infos
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
