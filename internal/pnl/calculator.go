// internal/pnl/calculator.go
package pnl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/price"
)

var (
	// ErrCanceled is returned when the caller abandons a run. Partial
	// ledgers are discarded.
	ErrCanceled = errors.New("pnl run canceled")

	// ErrInvalidEvent flags an event the normalizer should never emit.
	ErrInvalidEvent = errors.New("invalid transfer event")
)

var hundred = decimal.NewFromInt(100)

// Calculator replays one asset's events under the average-cost-basis rule.
type Calculator struct {
	resolver price.Resolver
	observer Observer
	logger   *zap.Logger
}

// NewCalculator creates a calculator. observer may be nil.
func NewCalculator(resolver price.Resolver, logger *zap.Logger, observer Observer) *Calculator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Calculator{
		resolver: resolver,
		observer: observer,
		logger:   logger.Named("calculator"),
	}
}

// Calculate replays events for assetID in chronological order and returns the
// summary. Rounding is never applied here.
func (c *Calculator) Calculate(ctx context.Context, assetID string, events []domain.TransferEvent) (domain.PnLSummary, error) {
	start := time.Now()
	sum, ledger, err := c.replay(ctx, assetID, events)
	if err != nil {
		c.observer.AssetFailed(assetID, err)
		return domain.PnLSummary{}, err
	}

	c.observer.AssetProcessed(AssetStats{
		AssetID:     assetID,
		AssetSymbol: sum.AssetSymbol,
		Events:      ledger.EventCount,
		Degradation: ledger.Degradation,
		Duration:    time.Since(start),
	})
	return sum, nil
}

func (c *Calculator) replay(ctx context.Context, assetID string, events []domain.TransferEvent) (domain.PnLSummary, *domain.AssetLedger, error) {
	sorted := chronological(events)
	ledger := &domain.AssetLedger{}
	log := c.logger.With(zap.String("asset", assetID))

	for _, ev := range sorted {
		if ev.Quantity.IsNegative() {
			return domain.PnLSummary{}, nil, fmt.Errorf("%w: negative quantity in %s", ErrInvalidEvent, ev.EventID)
		}
		if !ev.Direction.Valid() {
			return domain.PnLSummary{}, nil, fmt.Errorf("%w: direction %s in %s", ErrInvalidEvent, ev.Direction, ev.EventID)
		}

		unit, err := c.unitPrice(ctx, assetID, ev.Date(), ledger)
		if err != nil {
			return domain.PnLSummary{}, nil, err
		}
		ev.UnitPrice = unit

		switch ev.Direction {
		case domain.Inbound:
			ledger.TotalBoughtQty = ledger.TotalBoughtQty.Add(ev.Quantity)
			ledger.TotalBoughtValue = ledger.TotalBoughtValue.Add(ev.Quantity.Mul(unit))
			ledger.CurrentBalance = ledger.CurrentBalance.Add(ev.Quantity)

		case domain.Outbound:
			if !ledger.CurrentBalance.IsPositive() {
				ledger.Degradation.IgnoredEvents++
				log.Debug("Outbound transfer ignored, no tracked balance",
					zap.String("event_id", ev.EventID),
					zap.String("quantity", ev.Quantity.String()))
				break
			}
			sellable := decimal.Min(ev.Quantity, ledger.CurrentBalance)
			if sellable.LessThan(ev.Quantity) {
				ledger.Degradation.ClampedEvents++
				log.Debug("Outbound transfer clamped to tracked balance",
					zap.String("event_id", ev.EventID),
					zap.String("quantity", ev.Quantity.String()),
					zap.String("sellable", sellable.String()))
			}
			ledger.TotalSoldQty = ledger.TotalSoldQty.Add(sellable)
			ledger.TotalSoldValue = ledger.TotalSoldValue.Add(sellable.Mul(unit))
			ledger.CurrentBalance = ledger.CurrentBalance.Sub(sellable)
		}

		if ev.AssumedDecimals {
			ledger.Degradation.AssumedDecimals++
		}
		ledger.LastEventDate = ev.OccurredAt
		ledger.EventCount++
	}

	sum := domain.PnLSummary{
		AssetID:          assetID,
		TotalBoughtQty:   ledger.TotalBoughtQty,
		TotalSoldQty:     ledger.TotalSoldQty,
		CurrentBalance:   ledger.CurrentBalance,
		TotalBoughtValue: ledger.TotalBoughtValue,
		TotalSoldValue:   ledger.TotalSoldValue,
		AverageBuyPrice:  ratio(ledger.TotalBoughtValue, ledger.TotalBoughtQty),
		AverageSellPrice: ratio(ledger.TotalSoldValue, ledger.TotalSoldQty),
		TotalPnL:         ledger.TotalSoldValue.Sub(ledger.TotalBoughtValue),
		EventCount:       ledger.EventCount,
	}
	if len(sorted) > 0 {
		last := sorted[len(sorted)-1]
		sum.AssetSymbol = last.AssetSymbol
		sum.AssetName = last.AssetName
	}
	if ledger.TotalBoughtValue.IsPositive() {
		sum.PnLPercentage = sum.TotalPnL.Div(ledger.TotalBoughtValue).Mul(hundred)
	}

	if ledger.EventCount > 0 {
		lastDate := domain.DateOf(ledger.LastEventDate)
		sum.LastTradeDate = &lastDate

		q, err := c.quote(ctx, assetID, lastDate)
		if err != nil {
			return domain.PnLSummary{}, nil, err
		}
		sum.CurrentPrice = q.Price
		ledger.Degradation.CurrentPriceMiss = !q.Known
	}
	sum.HoldingValue = sum.CurrentBalance.Mul(sum.CurrentPrice)
	sum.NetPnL = sum.TotalPnL.Add(sum.HoldingValue)
	sum.Degradation = ledger.Degradation
	sum.Confidence = confidence(ledger)

	return sum, ledger, nil
}

// unitPrice resolves the event price, falling back to zero on unknown or
// failed lookups. Only cancellation of ctx is returned as an error.
func (c *Calculator) unitPrice(ctx context.Context, assetID string, date time.Time, ledger *domain.AssetLedger) (decimal.Decimal, error) {
	q, err := c.quote(ctx, assetID, date)
	if err != nil {
		return decimal.Zero, err
	}
	if !q.Known {
		ledger.Degradation.PriceUnavailable++
		return decimal.Zero, nil
	}
	return q.Price, nil
}

func (c *Calculator) quote(ctx context.Context, assetID string, date time.Time) (price.Quote, error) {
	if err := ctx.Err(); err != nil {
		return price.Unknown, fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	q, err := c.resolver.Resolve(ctx, assetID, date)
	if err == nil {
		if q.Known && q.Price.IsNegative() {
			c.logger.Warn("Negative price treated as unknown",
				zap.String("asset", assetID),
				zap.String("price", q.Price.String()))
			return price.Unknown, nil
		}
		return q, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return price.Unknown, fmt.Errorf("%w: %v", ErrCanceled, ctxErr)
	}
	c.logger.Warn("Price lookup failed, using zero",
		zap.String("asset", assetID),
		zap.String("date", date.Format(domain.DateLayout)),
		zap.Error(err))
	return price.Unknown, nil
}

// chronological returns a sorted copy: ascending OccurredAt, ties broken by
// EventID then LogIndex so replays are deterministic.
func chronological(events []domain.TransferEvent) []domain.TransferEvent {
	out := make([]domain.TransferEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out
}

func ratio(value, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return value.Div(qty)
}

func confidence(l *domain.AssetLedger) domain.Confidence {
	switch {
	case l.EventCount > 0 && l.Degradation.PriceUnavailable == l.EventCount:
		return domain.ConfidenceLow
	case l.Degradation.Degraded():
		return domain.ConfidenceDegraded
	default:
		return domain.ConfidenceHigh
	}
}
