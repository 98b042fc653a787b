package middleware

import (
	"sync"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
)

// QuotePipeline sits between the WebSocket stream and downstream
// consumers: it validates ticks and throttles per symbol so a bursty feed
// cannot flood the gauges.
type QuotePipeline struct {
	metrics  domrepo.Metrics
	maxRPS   int
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*QuotePipeline)

// WithMaxRPS sets the max accepted ticks per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// NewQuotePipeline creates a new pipeline.
func NewQuotePipeline(metrics domrepo.Metrics, opts ...PipelineOption) *QuotePipeline {
	p := &QuotePipeline{
		metrics:  metrics,
		maxRPS:   20, // default throttle per symbol
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Accept validates and throttles one tick. Rejected ticks are dropped
// silently after a metrics bump.
func (p *QuotePipeline) Accept(t *models.Trade) bool {
	if err := validateTrade(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return false
	}
	if !p.allow(t.Symbol, time.Now()) {
		p.metrics.RecordError("pipeline_throttle")
		return false
	}
	return true
}

func validateTrade(t *models.Trade) error {
	switch {
	case t == nil:
		return errNilTrade
	case t.Symbol == "":
		return errEmptySymbol
	case t.Timestamp <= 0:
		return errBadTimestamp
	case t.Price < 0 || t.Volume < 0:
		return errNegativeValues
	}
	return nil
}

var (
	errNilTrade       = pipelineError("trade nil")
	errEmptySymbol    = pipelineError("symbol empty")
	errBadTimestamp   = pipelineError("timestamp invalid")
	errNegativeValues = pipelineError("negative price/volume")
)

type pipelineError string

func (e pipelineError) Error() string { return string(e) }

func (p *QuotePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[symbol] = now
		return true
	}
	return false
}
