// Package pnl turns normalized transfer events into per-asset average-cost
// profit-and-loss summaries.
package pnl

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/normalizer"
)

// Engine runs normalization, grouping and per-asset replays for a wallet.
type Engine struct {
	normalizer *normalizer.Normalizer
	calculator *Calculator
	workers    int
	logger     *zap.Logger
}

// Result is the outcome of one engine run.
type Result struct {
	Summaries     []domain.PnLSummary
	Normalization *normalizer.Result
}

// NewEngine creates an engine. workers <= 0 uses GOMAXPROCS.
func NewEngine(n *normalizer.Normalizer, c *Calculator, workers int, logger *zap.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		normalizer: n,
		calculator: c,
		workers:    workers,
		logger:     logger.Named("engine"),
	}
}

// Run normalizes records for wallet and summarizes every asset. Summaries
// follow the first-appearance order of assets in the normalized stream.
func (e *Engine) Run(ctx context.Context, wallet string, records []domain.RawTransfer) (*Result, error) {
	norm, err := e.Normalize(wallet, records)
	if err != nil {
		return nil, err
	}
	summaries, err := e.Summarize(ctx, norm.Events)
	if err != nil {
		return nil, err
	}
	return &Result{Summaries: summaries, Normalization: norm}, nil
}

// Normalize runs only the normalization step.
func (e *Engine) Normalize(wallet string, records []domain.RawTransfer) (*normalizer.Result, error) {
	return e.normalizer.Normalize(wallet, records)
}

// Summarize replays each asset group concurrently. Each goroutine owns its
// ledger and writes only its own slot in the output. If any replay fails or
// ctx is canceled, no summaries are returned.
func (e *Engine) Summarize(ctx context.Context, events []domain.TransferEvent) ([]domain.PnLSummary, error) {
	groups := Group(events)
	out := make([]domain.PnLSummary, groups.Len())
	if groups.Len() == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, assetID := range groups.Order {
		g.Go(func() error {
			sum, err := e.calculator.Calculate(gctx, assetID, groups.ByAsset[assetID])
			if err != nil {
				return fmt.Errorf("asset %s: %w", assetID, err)
			}
			out[i] = sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %v", ErrCanceled, ctxErr)
		}
		e.logger.Warn("Summarize aborted", zap.Int("assets", groups.Len()), zap.Error(err))
		return nil, err
	}

	e.logger.Debug("Summarize completed",
		zap.Int("events", len(events)),
		zap.Int("assets", groups.Len()),
		zap.Int("workers", e.workers))
	return out, nil
}
