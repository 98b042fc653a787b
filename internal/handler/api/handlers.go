package api

import (
	"errors"
	"fmt"
	"time"

	models "StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	dservice "StockCast/internal/domain/service"
	icache "StockCast/internal/service/cache"
	"StockCast/internal/usecase"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
	"StockCast/pkg/util"

	"github.com/labstack/echo/v4"
)

const (
	topCacheTTL    = 30 * time.Second
	regimeCacheTTL = 15 * time.Second
)

// Handler exposes the scheduler-trigger and read endpoints over Echo.
type Handler struct {
	logger    *xlogger.Logger
	predCycle *usecase.PredictionCycle
	learn     *usecase.LearningCycle
	bank      dservice.ModelBank
	detector  dservice.RegimeDetector
	ledger    domrepo.LedgerStore
	prices    domrepo.PriceStore
	cache     *icache.TTLCache
}

func NewHandler(
	logger *xlogger.Logger,
	predCycle *usecase.PredictionCycle,
	learn *usecase.LearningCycle,
	bank dservice.ModelBank,
	detector dservice.RegimeDetector,
	ledger domrepo.LedgerStore,
	prices domrepo.PriceStore,
	cache *icache.TTLCache,
) *Handler {
	return &Handler{
		logger:    logger,
		predCycle: predCycle,
		learn:     learn,
		bank:      bank,
		detector:  detector,
		ledger:    ledger,
		prices:    prices,
		cache:     cache,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.POST("/cycles/prediction", h.RunPredictionCycle)
	g.POST("/cycles/learning", h.RunLearningCycle)
	g.GET("/predictions/top", h.TopPredictions)
	g.GET("/regime", h.Regime)
	g.GET("/models/:region", h.ModelInfo)
}

func (h *Handler) Health(c echo.Context) error {
	if err := h.prices.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_UNHEALTHY", "", "storage unreachable", 503).WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// RunPredictionCycle runs the full prediction pipeline for one region. The
// scheduler calls this once per trading day after market close.
func (h *Handler) RunPredictionCycle(c echo.Context) error {
	req := &models.PredictionCycleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, err := parseDateOrToday(req.AsOf)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("as_of: %v", err))
	}

	summary, err := h.predCycle.Run(c.Request().Context(), req.Region, asOf)
	if err != nil {
		h.logger.Error("prediction cycle failed",
			xlogger.String("region", req.Region), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, summary)
}

// RunLearningCycle evaluates matured predictions and may enqueue a retrain.
func (h *Handler) RunLearningCycle(c echo.Context) error {
	req := &models.LearningCycleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	evalDate, err := parseDateOrToday(req.EvaluationDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("evaluation_date: %v", err))
	}

	summary, err := h.learn.Run(c.Request().Context(), req.Region, evalDate)
	if err != nil {
		h.logger.Error("learning cycle failed",
			xlogger.String("region", req.Region), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *Handler) TopPredictions(c echo.Context) error {
	req := &models.TopPredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("date: %v", err))
	}

	key := fmt.Sprintf("top:%s:%s:%d", req.Region, date.Format("2006-01-02"), req.N)
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			return xhttp.SuccessResponse(c, v)
		}
	}

	preds, err := h.ledger.TopForDate(c.Request().Context(), req.Region, date, req.N)
	if err != nil {
		h.logger.Error("top predictions query failed",
			xlogger.String("region", req.Region), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	if h.cache != nil {
		h.cache.Set(key, preds, topCacheTTL)
	}
	return xhttp.SuccessResponse(c, preds)
}

type regimeResponse struct {
	Region string        `json:"region"`
	Window int           `json:"window"`
	Regime models.Regime `json:"regime"`
}

func (h *Handler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := fmt.Sprintf("regime:%s:%d", req.Region, req.Window)
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			return xhttp.SuccessResponse(c, v)
		}
	}

	returns, err := h.prices.IndexReturns(c.Request().Context(), req.Region, req.Window)
	if err != nil {
		h.logger.Error("index returns query failed",
			xlogger.String("region", req.Region), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	res := &regimeResponse{
		Region: req.Region,
		Window: req.Window,
		Regime: h.detector.Detect(returns),
	}
	if h.cache != nil {
		h.cache.Set(key, res, regimeCacheTTL)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) ModelInfo(c echo.Context) error {
	req := &models.ModelInfoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	art, err := h.bank.Current(req.Region)
	if err != nil {
		return xhttp.AppErrorResponse(c, domainError(err))
	}
	return xhttp.SuccessResponse(c, art)
}

func parseDateOrToday(s string) (time.Time, error) {
	if s == "" {
		return util.Today(), nil
	}
	return util.ParseDate(s)
}

// domainError maps domain sentinels to HTTP application errors.
func domainError(err error) error {
	switch {
	case errors.Is(err, models.ErrModelUnavailable):
		return xhttp.NotFoundError("no trained model for region").WithError(err)
	case errors.Is(err, models.ErrDataInsufficient):
		return xhttp.NewAppError("ERR_DATA_INSUFFICIENT", "", "not enough history", 422).WithError(err)
	default:
		return err
	}
}
