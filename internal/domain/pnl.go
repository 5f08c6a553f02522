// Package domain holds the transfer and profit-and-loss types shared by the
// normalizer, the cost-basis calculator and the report assembler.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetLedger accumulates one asset's history during a single replay. It is
// never persisted.
type AssetLedger struct {
	TotalBoughtQty   decimal.Decimal
	TotalSoldQty     decimal.Decimal
	TotalBoughtValue decimal.Decimal
	TotalSoldValue   decimal.Decimal
	CurrentBalance   decimal.Decimal // never negative
	LastEventDate    time.Time
	EventCount       int

	Degradation Degradation
}

// Degradation counts the events of a replay that relied on missing or
// assumed data.
type Degradation struct {
	PriceUnavailable int  `json:"price_unavailable"`
	ClampedEvents    int  `json:"clamped_events"`
	IgnoredEvents    int  `json:"ignored_events"`
	AssumedDecimals  int  `json:"assumed_decimals"`
	CurrentPriceMiss bool `json:"current_price_missing"`
}

// Degraded reports whether any part of the summary was computed from
// incomplete data.
func (d Degradation) Degraded() bool {
	return d.PriceUnavailable > 0 || d.ClampedEvents > 0 || d.IgnoredEvents > 0 ||
		d.AssumedDecimals > 0 || d.CurrentPriceMiss
}

// Reasons lists the degradation causes in a stable order.
func (d Degradation) Reasons() []string {
	var out []string
	if d.PriceUnavailable > 0 {
		out = append(out, "price_unavailable")
	}
	if d.CurrentPriceMiss {
		out = append(out, "current_price_missing")
	}
	if d.ClampedEvents > 0 {
		out = append(out, "oversell_clamped")
	}
	if d.IgnoredEvents > 0 {
		out = append(out, "oversell_ignored")
	}
	if d.AssumedDecimals > 0 {
		out = append(out, "assumed_decimals")
	}
	return out
}

// Confidence grades a summary by how much of it rests on verified data.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceDegraded Confidence = "degraded"
	ConfidenceLow      Confidence = "low" // no event had a known price
)

// PnLSummary is the per-asset result of a cost-basis replay.
type PnLSummary struct {
	AssetID     string
	AssetSymbol string
	AssetName   string

	TotalBoughtQty   decimal.Decimal
	TotalSoldQty     decimal.Decimal
	CurrentBalance   decimal.Decimal
	TotalBoughtValue decimal.Decimal
	TotalSoldValue   decimal.Decimal
	AverageBuyPrice  decimal.Decimal
	AverageSellPrice decimal.Decimal
	CurrentPrice     decimal.Decimal

	// TotalPnL is realized-basis: TotalSoldValue - TotalBoughtValue.
	TotalPnL      decimal.Decimal
	PnLPercentage decimal.Decimal

	// HoldingValue is CurrentBalance at CurrentPrice; NetPnL adds it to TotalPnL.
	HoldingValue decimal.Decimal
	NetPnL       decimal.Decimal

	LastTradeDate *time.Time
	EventCount    int
	Degradation   Degradation
	Confidence    Confidence
}
