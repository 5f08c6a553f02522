// Package app wires a transfer source, the PnL engine and the report
// assembler into a single wallet analysis.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/normalizer"
	"github.com/rovshanmuradov/losscheck/internal/pnl"
	"github.com/rovshanmuradov/losscheck/internal/report"
	"github.com/rovshanmuradov/losscheck/internal/source"
)

// Options narrows one analysis.
type Options struct {
	// Symbols keeps only assets whose symbol (case-insensitive) or id
	// matches. Empty keeps everything.
	Symbols []string
}

// Analyzer produces loss reports for wallets.
type Analyzer struct {
	source source.Source
	engine *pnl.Engine
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(src source.Source, engine *pnl.Engine, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		source: src,
		engine: engine,
		logger: logger.Named("analyzer"),
		now:    time.Now,
	}
}

// Analyze fetches, normalizes and summarizes wallet's transfers. Source
// failures are returned as is, so callers can tell them from a wallet with
// no transfers, which yields a report with zero rows.
func (a *Analyzer) Analyze(ctx context.Context, wallet string, opts Options) (*report.Report, error) {
	runID := uuid.New().String()
	log := a.logger.With(zap.String("wallet", wallet), zap.String("run_id", runID))
	start := a.now()

	records, err := a.source.Fetch(ctx, wallet)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, source.ErrUpstream) {
			return nil, fmt.Errorf("%w: %v", pnl.ErrCanceled, ctxErr)
		}
		log.Error("Fetching transfers failed", zap.Error(err))
		return nil, err
	}

	norm, err := a.engine.Normalize(wallet, records)
	if err != nil {
		return nil, err
	}
	events := filterSymbols(norm.Events, opts.Symbols)

	summaries, err := a.engine.Summarize(ctx, events)
	if err != nil {
		return nil, err
	}

	now := a.now()
	rows := report.Assemble(summaries, now)
	rep := &report.Report{
		Wallet:      wallet,
		RunID:       runID,
		GeneratedAt: now.UTC(),
		Rows:        rows,
		Totals:      report.Total(rows),
		Diagnostics: diagnostics(len(records), norm),
	}

	log.Info("Analysis completed",
		zap.Int("records", len(records)),
		zap.Int("events", len(events)),
		zap.Int("assets", len(rows)),
		zap.Int("degraded", rep.Totals.Degraded),
		zap.String("total_pnl", rep.Totals.TotalPnL.StringFixed(report.Places)),
		zap.Duration("duration", now.Sub(start)))
	return rep, nil
}

func filterSymbols(events []domain.TransferEvent, symbols []string) []domain.TransferEvent {
	bySymbols := make(map[string]struct{}, len(symbols))
	byIDs := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			bySymbols[strings.ToLower(s)] = struct{}{}
			byIDs[chain.FoldID(s)] = struct{}{}
		}
	}
	if len(bySymbols) == 0 {
		return events
	}

	out := make([]domain.TransferEvent, 0, len(events))
	for _, ev := range events {
		_, bySymbol := bySymbols[strings.ToLower(ev.AssetSymbol)]
		_, byID := byIDs[chain.FoldID(ev.AssetID)]
		if bySymbol || byID {
			out = append(out, ev)
		}
	}
	return out
}

func diagnostics(records int, norm *normalizer.Result) report.Diagnostics {
	return report.Diagnostics{
		Records:         records,
		Events:          len(norm.Events),
		Skipped:         len(norm.Skipped),
		SelfTransfers:   norm.SelfTransfers,
		Unrelated:       norm.Unrelated,
		Duplicates:      norm.Duplicates,
		ZeroAmount:      norm.ZeroAmount,
		AssumedDecimals: norm.AssumedCount,
	}
}
