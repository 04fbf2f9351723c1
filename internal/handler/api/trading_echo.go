package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	"PaperPulse/internal/pricefeed"
	"PaperPulse/internal/usecase"
	xhttp "PaperPulse/pkg/http"
	xlogger "PaperPulse/pkg/logger"
	xutil "PaperPulse/pkg/util"
)

// TradingEchoHandler exposes the signal and trade control operations over
// HTTP.
type TradingEchoHandler struct {
	logger  *xlogger.Logger
	signals *usecase.SignalService
	trades  *usecase.TradeService
	chain   *pricefeed.SourceChain
	history domrepo.HistoryStore
}

func NewTradingEchoHandler(
	logger *xlogger.Logger,
	signals *usecase.SignalService,
	trades *usecase.TradeService,
	chain *pricefeed.SourceChain,
	history domrepo.HistoryStore,
) *TradingEchoHandler {
	return &TradingEchoHandler{logger: logger, signals: signals, trades: trades, chain: chain, history: history}
}

func (h *TradingEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/signal", h.GenerateSignal)
	g.POST("/trades", h.OpenTrade)
	g.POST("/trades/:id/close", h.CloseTrade)
	g.GET("/trades", h.ActiveTrades)
	g.GET("/trades/history", h.TradeHistory)
	g.GET("/price/:symbol", h.Price)
	g.GET("/ticks", h.Ticks)
	g.GET("/account", h.Account)
	g.GET("/feed/status", h.FeedStatus)
}

func (h *TradingEchoHandler) GenerateSignal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, err := h.signals.Generate(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		h.logger.Error("signal usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *TradingEchoHandler) OpenTrade(c echo.Context) error {
	req := &models.OpenTradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	t, err := h.trades.Open(c.Request().Context(), *req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrder) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("open trade error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, t)
}

func (h *TradingEchoHandler) CloseTrade(c echo.Context) error {
	req := &models.CloseTradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	t, err := h.trades.Close(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrTradeNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("trade %s not found", req.ID))
		}
		h.logger.Error("close trade error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, t)
}

func (h *TradingEchoHandler) ActiveTrades(c echo.Context) error {
	rows := h.trades.Active()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) TradeHistory(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows := h.trades.History()
	if req.Symbol != "" {
		filtered := rows[:0]
		for _, t := range rows {
			if t.Symbol == req.Symbol {
				filtered = append(filtered, t)
			}
		}
		rows = filtered
	}
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[len(rows)-req.Limit:]
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) Price(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p, ok := h.chain.GetPriceMaxAge(req.Symbol, time.Duration(req.MaxAgeSec)*time.Second)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no fresh price for %s", req.Symbol))
	}
	return xhttp.SuccessResponse(c, p)
}

// Ticks serves recorded price history when the tick store is enabled.
func (h *TradingEchoHandler) Ticks(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("tick history is not enabled"))
	}
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol is required")
	}
	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	from, to = xutil.AlignRange(from, to, time.Second)
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 1000)

	rows, err := h.history.QueryTicks(c.Request().Context(), symbol, from, to, limit)
	if err != nil {
		h.logger.Error("tick history query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) Account(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.trades.Account())
}

// FeedStatus reports the last known price per symbol, stale or not.
func (h *TradingEchoHandler) FeedStatus(c echo.Context) error {
	snapshot := h.chain.Cache().Snapshot()
	return xhttp.SuccessResponse(c, snapshot)
}
