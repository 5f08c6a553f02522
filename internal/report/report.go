// Package report maps per-asset summaries to presentation rows. All rounding
// in the module happens here.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/losscheck/internal/domain"
)

// Places is the number of decimal places for currency values and
// percentages in rows.
const Places = 2

// Row is one asset line of the loss report. Quantities keep full precision;
// currency values and percentages are rounded half away from zero.
type Row struct {
	AssetID string `json:"asset_id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`

	BoughtQty decimal.Decimal `json:"bought_qty"`
	SoldQty   decimal.Decimal `json:"sold_qty"`
	Balance   decimal.Decimal `json:"balance"`

	BoughtValue   decimal.Decimal `json:"bought_value"`
	SoldValue     decimal.Decimal `json:"sold_value"`
	AvgBuyPrice   decimal.Decimal `json:"avg_buy_price"`
	AvgSellPrice  decimal.Decimal `json:"avg_sell_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	PnLPercentage decimal.Decimal `json:"pnl_percentage"`
	HoldingValue  decimal.Decimal `json:"holding_value"`
	NetPnL        decimal.Decimal `json:"net_pnl"`

	LastTradeDate string            `json:"last_trade_date"`
	Events        int               `json:"events"`
	Confidence    domain.Confidence `json:"confidence"`
	Degraded      bool              `json:"degraded"`
	Reasons       []string          `json:"reasons,omitempty"`
}

// Diagnostics summarizes what the normalizer dropped for a run.
type Diagnostics struct {
	Records         int `json:"records"`
	Events          int `json:"events"`
	Skipped         int `json:"skipped"`
	SelfTransfers   int `json:"self_transfers"`
	Unrelated       int `json:"unrelated"`
	Duplicates      int `json:"duplicates"`
	ZeroAmount      int `json:"zero_amount"`
	AssumedDecimals int `json:"assumed_decimals"`
}

// Report is a complete loss report for one wallet.
type Report struct {
	Wallet      string      `json:"wallet"`
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Rows        []Row       `json:"rows"`
	Totals      Totals      `json:"totals"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Assemble converts summaries into rows, keeping their order. Assets without
// a last trade date are stamped with the day of now.
func Assemble(summaries []domain.PnLSummary, now time.Time) []Row {
	rows := make([]Row, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, assembleRow(s, now))
	}
	return rows
}

func assembleRow(s domain.PnLSummary, now time.Time) Row {
	date := domain.DateOf(now)
	if s.LastTradeDate != nil {
		date = domain.DateOf(*s.LastTradeDate)
	}
	return Row{
		AssetID:       s.AssetID,
		Symbol:        s.AssetSymbol,
		Name:          s.AssetName,
		BoughtQty:     s.TotalBoughtQty,
		SoldQty:       s.TotalSoldQty,
		Balance:       s.CurrentBalance,
		BoughtValue:   round(s.TotalBoughtValue),
		SoldValue:     round(s.TotalSoldValue),
		AvgBuyPrice:   round(s.AverageBuyPrice),
		AvgSellPrice:  round(s.AverageSellPrice),
		CurrentPrice:  round(s.CurrentPrice),
		TotalPnL:      round(s.TotalPnL),
		PnLPercentage: round(s.PnLPercentage),
		HoldingValue:  round(s.HoldingValue),
		NetPnL:        round(s.NetPnL),
		LastTradeDate: date.Format(domain.DateLayout),
		Events:        s.EventCount,
		Confidence:    s.Confidence,
		Degraded:      s.Degradation.Degraded(),
		Reasons:       s.Degradation.Reasons(),
	}
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Totals aggregates rows into portfolio figures.
type Totals struct {
	Assets       int             `json:"assets"`
	Degraded     int             `json:"degraded"`
	BoughtValue  decimal.Decimal `json:"bought_value"`
	SoldValue    decimal.Decimal `json:"sold_value"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	HoldingValue decimal.Decimal `json:"holding_value"`
	NetPnL       decimal.Decimal `json:"net_pnl"`
}

// Total sums rows. Values are already rounded, so sums stay at two places.
func Total(rows []Row) Totals {
	t := Totals{Assets: len(rows)}
	for _, r := range rows {
		if r.Degraded {
			t.Degraded++
		}
		t.BoughtValue = t.BoughtValue.Add(r.BoughtValue)
		t.SoldValue = t.SoldValue.Add(r.SoldValue)
		t.TotalPnL = t.TotalPnL.Add(r.TotalPnL)
		t.HoldingValue = t.HoldingValue.Add(r.HoldingValue)
		t.NetPnL = t.NetPnL.Add(r.NetPnL)
	}
	return t
}

// Losses returns the rows with a negative TotalPnL.
func Losses(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.TotalPnL.IsNegative() {
			out = append(out, r)
		}
	}
	return out
}
