package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
	"CoinRoute/internal/usecase"
	xhttp "CoinRoute/pkg/http"
	"CoinRoute/pkg/http/middleware"
	xlogger "CoinRoute/pkg/logger"
	xutil "CoinRoute/pkg/util"
)

// OrdersHandler exposes the trading pipeline over HTTP.
type OrdersHandler struct {
	logger  *xlogger.Logger
	intake  *usecase.SignalIntake
	gate    *usecase.RiskGate
	router  *usecase.ExchangeRouter
	storage domrepo.Storage
	stream  domrepo.SignalStream
}

func NewOrdersHandler(
	logger *xlogger.Logger,
	intake *usecase.SignalIntake,
	gate *usecase.RiskGate,
	router *usecase.ExchangeRouter,
	storage domrepo.Storage,
	stream domrepo.SignalStream,
) *OrdersHandler {
	return &OrdersHandler{
		logger:  logger,
		intake:  intake,
		gate:    gate,
		router:  router,
		storage: storage,
		stream:  stream,
	}
}

func (h *OrdersHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.Use(middleware.Throttle(middleware.ThrottleConfig{RPS: rate.Limit(20), Burst: 40}))
	g.POST("/signals", h.SubmitSignal)
	g.GET("/signals/queue", h.Queue)
	g.GET("/signals/audit", h.Audit)
	g.POST("/orders", h.SubmitOrder)
	g.GET("/orders", h.Orders)
	g.DELETE("/orders/:exchange/:id", h.CancelOrder)
	g.GET("/ticker/:symbol", h.Ticker)
	g.GET("/balances", h.Balances)
	g.GET("/risk/stats", h.RiskStats)
	g.GET("/exchanges", h.Exchanges)
}

// SignalRequest is the inbound signal submission body.
type SignalRequest struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol" validate:"required"`
	Side       string  `json:"side" validate:"required,oneof=BUY SELL"`
	Entry      float64 `json:"entry" validate:"required,gt=0"`
	StopLoss   float64 `json:"stop_loss" validate:"required,gt=0"`
	TakeProfit float64 `json:"take_profit" validate:"required,gt=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=100"`
	Strategy   string  `json:"strategy"`
	Timeframe  string  `json:"timeframe"`
	Amount     float64 `json:"amount"`
	Leverage   float64 `json:"leverage"`
}

func (h *OrdersHandler) SubmitSignal(c echo.Context) error {
	req := &SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig := &models.Signal{
		ID:         req.ID,
		Symbol:     req.Symbol,
		Side:       models.Side(req.Side),
		Entry:      req.Entry,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Confidence: req.Confidence,
		Strategy:   req.Strategy,
		Timeframe:  req.Timeframe,
		Amount:     req.Amount,
		Leverage:   req.Leverage,
		Timestamp:  time.Now().UnixMilli(),
	}

	rs, err := h.intake.Submit(sig)
	if err != nil {
		h.logger.Error("signal submit error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if rs.Status == models.SignalRejected {
		return xhttp.DataResponse(c, http.StatusUnprocessableEntity, rs)
	}
	return xhttp.CreatedResponse(c, rs)
}

func (h *OrdersHandler) Queue(c echo.Context) error {
	pending := h.intake.Pending()
	return xhttp.ListResponse(c, pending, int64(len(pending)))
}

func (h *OrdersHandler) Audit(c echo.Context) error {
	audit := h.intake.Audit()
	return xhttp.ListResponse(c, audit, int64(len(audit)))
}

// OrderSubmitRequest places an order directly, bypassing the signal
// pipeline but not the router's validation and rate control.
type OrderSubmitRequest struct {
	Symbol      string  `json:"symbol" validate:"required"`
	Side        string  `json:"side" validate:"required,oneof=BUY SELL"`
	Type        string  `json:"type" validate:"required,oneof=MARKET LIMIT STOP_LOSS STOP_LOSS_LIMIT TAKE_PROFIT"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	Price       float64 `json:"price"`
	StopPrice   float64 `json:"stop_price"`
	TimeInForce string  `json:"time_in_force"`
}

func (h *OrdersHandler) SubmitOrder(c echo.Context) error {
	req := &OrderSubmitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.router.SubmitOrder(c.Request().Context(), &models.OrderRequest{
		Symbol:      req.Symbol,
		Side:        models.Side(req.Side),
		Type:        models.OrderType(req.Type),
		Quantity:    req.Quantity,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		TimeInForce: models.TimeInForce(req.TimeInForce),
	})
	if err != nil {
		h.logger.Error("order submit error", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusBadGateway, errBody(err))
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *OrdersHandler) Orders(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol is required")
	}
	now := time.Now()
	from := xutil.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := xutil.ParseTimeDefault(c.QueryParam("to"), now)
	from, to = xutil.AlignFromTo(from, to, c.QueryParam("tf"))
	limit := xutil.ParseIntDefault(c.QueryParam("limit"), 100)

	orders, err := h.storage.QueryOrders(c.Request().Context(), symbol, from, to, limit)
	if err != nil {
		h.logger.Error("order query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, orders, int64(len(orders)))
}

func (h *OrdersHandler) CancelOrder(c echo.Context) error {
	exchange := c.Param("exchange")
	orderID := c.Param("id")
	symbol := c.QueryParam("symbol")

	if err := h.router.CancelOrder(c.Request().Context(), exchange, symbol, orderID); err != nil {
		h.logger.Error("cancel error",
			xlogger.String("order_id", orderID), xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusBadGateway, errBody(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *OrdersHandler) Ticker(c echo.Context) error {
	t, err := h.router.GetTicker(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		h.logger.Error("ticker error", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusBadGateway, errBody(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, t)
}

func (h *OrdersHandler) Balances(c echo.Context) error {
	balances, err := h.router.GetBalances(c.Request().Context())
	if err != nil {
		h.logger.Error("balances error", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusBadGateway, errBody(err))
	}
	return xhttp.ListResponse(c, balances, int64(len(balances)))
}

func (h *OrdersHandler) RiskStats(c echo.Context) error {
	trades, pnl, drawdown := h.gate.DailyStats()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"daily_trades":   trades,
		"daily_pnl":      pnl,
		"daily_drawdown": drawdown,
	})
}

func (h *OrdersHandler) Exchanges(c echo.Context) error {
	names := h.router.Exchanges()
	return xhttp.ListResponse(c, names, int64(len(names)))
}

func (h *OrdersHandler) Health(c echo.Context) error {
	status := map[string]interface{}{
		"status":           "ok",
		"stream_connected": h.stream != nil && h.stream.IsConnected(),
	}
	if h.storage != nil {
		if err := h.storage.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}

// errBody keeps classified exchange faults intact in responses; plain
// errors would otherwise marshal to an empty object.
func errBody(err error) interface{} {
	var xe *models.ExchangeError
	if errors.As(err, &xe) {
		return xe
	}
	return map[string]string{"message": err.Error()}
}
