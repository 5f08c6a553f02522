package pnl

import (
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
)

// AssetStats is the per-asset observability record emitted after a replay.
type AssetStats struct {
	AssetID     string
	AssetSymbol string
	Events      int
	Degradation domain.Degradation
	Duration    time.Duration
}

// Observer receives per-asset outcomes. Implementations must be safe for
// concurrent use; the engine replays assets in parallel.
type Observer interface {
	AssetProcessed(stats AssetStats)
	AssetFailed(assetID string, err error)
}

type nopObserver struct{}

func (nopObserver) AssetProcessed(AssetStats) {}
func (nopObserver) AssetFailed(string, error) {}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) AssetProcessed(stats AssetStats) {
	for _, o := range m {
		o.AssetProcessed(stats)
	}
}

func (m MultiObserver) AssetFailed(assetID string, err error) {
	for _, o := range m {
		o.AssetFailed(assetID, err)
	}
}

// LogObserver writes per-asset outcomes to a zap logger. Degraded assets
// are logged at warn level.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger.Named("pnl")}
}

func (o *LogObserver) AssetProcessed(s AssetStats) {
	fields := []zap.Field{
		zap.String("asset", s.AssetID),
		zap.String("symbol", s.AssetSymbol),
		zap.Int("events", s.Events),
		zap.Int("price_unavailable", s.Degradation.PriceUnavailable),
		zap.Int("clamped", s.Degradation.ClampedEvents),
		zap.Int("ignored", s.Degradation.IgnoredEvents),
		zap.Int("assumed_decimals", s.Degradation.AssumedDecimals),
		zap.Duration("duration", s.Duration),
	}
	if s.Degradation.Degraded() {
		o.logger.Warn("Asset summarized on degraded data", append(fields, zap.Strings("reasons", s.Degradation.Reasons()))...)
		return
	}
	o.logger.Info("Asset summarized", fields...)
}

func (o *LogObserver) AssetFailed(assetID string, err error) {
	o.logger.Error("Asset replay aborted", zap.String("asset", assetID), zap.Error(err))
}
