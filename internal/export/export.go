package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/report"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// Options configures the export behavior
type Options struct {
	Format       Format
	AssetFilter  []string // symbols or asset ids, case-insensitive
	OnlyDegraded bool     // only rows computed from incomplete data
	OnlyLosses   bool     // only rows with negative PnL
	OutputDir    string
}

// ReportExporter writes loss reports as CSV or JSON.
type ReportExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewReportExporter creates a new report exporter
func NewReportExporter(logger *zap.Logger) *ReportExporter {
	return &ReportExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export writes rep to a generated file under options.OutputDir and returns
// its path.
func (e *ReportExporter) Export(rep *report.Report, options Options) (string, error) {
	dir := options.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, e.generateFilename(rep.Wallet, options.Format))
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s file: %w", options.Format, err)
	}
	defer file.Close()

	rows, err := e.Write(file, rep, options)
	if err != nil {
		return "", err
	}

	e.logger.Info("Report exported",
		zap.String("file", outputPath),
		zap.Int("rows", rows),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// Write encodes the filtered report to w and returns the number of rows
// written.
func (e *ReportExporter) Write(w io.Writer, rep *report.Report, options Options) (int, error) {
	rows := filterRows(rep.Rows, options)

	var err error
	switch options.Format {
	case FormatCSV:
		err = writeCSV(w, rows)
	case FormatJSON:
		err = e.writeJSON(w, rep, rows)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// filterRows applies filters to the row list
func filterRows(rows []report.Row, options Options) []report.Row {
	wanted := make(map[string]struct{}, len(options.AssetFilter))
	ids := make(map[string]struct{}, len(options.AssetFilter))
	for _, a := range options.AssetFilter {
		if a = strings.TrimSpace(a); a != "" {
			wanted[strings.ToLower(a)] = struct{}{}
			ids[chain.FoldID(a)] = struct{}{}
		}
	}

	filtered := make([]report.Row, 0, len(rows))
	for _, r := range rows {
		if len(wanted) > 0 {
			_, bySymbol := wanted[strings.ToLower(r.Symbol)]
			_, byID := ids[chain.FoldID(r.AssetID)]
			if !bySymbol && !byID {
				continue
			}
		}
		if options.OnlyDegraded && !r.Degraded {
			continue
		}
		if options.OnlyLosses && !r.TotalPnL.IsNegative() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// generateFilename builds losses_<wallet prefix>_<timestamp>.<ext>
func (e *ReportExporter) generateFilename(wallet string, format Format) string {
	prefix := strings.ToLower(wallet)
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	if prefix == "" {
		prefix = "unknown"
	}
	return fmt.Sprintf("losses_%s_%s.%s", prefix, e.now().Format("20060102_150405"), format)
}

// CSVHeaders returns the CSV header row.
func CSVHeaders() []string {
	return []string{
		"asset_id", "symbol", "name",
		"bought_qty", "sold_qty", "balance",
		"bought_value", "sold_value", "avg_buy_price", "avg_sell_price", "current_price",
		"total_pnl", "pnl_percentage", "holding_value", "net_pnl",
		"last_trade_date", "events", "confidence", "degraded", "reasons",
	}
}

func csvRecord(r report.Row) []string {
	return []string{
		r.AssetID, r.Symbol, r.Name,
		r.BoughtQty.String(), r.SoldQty.String(), r.Balance.String(),
		money(r.BoughtValue), money(r.SoldValue), money(r.AvgBuyPrice), money(r.AvgSellPrice), money(r.CurrentPrice),
		money(r.TotalPnL), money(r.PnLPercentage), money(r.HoldingValue), money(r.NetPnL),
		r.LastTradeDate, strconv.Itoa(r.Events), string(r.Confidence),
		strconv.FormatBool(r.Degraded), strings.Join(r.Reasons, ";"),
	}
}

// writeCSV exports rows to CSV format
func writeCSV(w io.Writer, rows []report.Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(csvRecord(r)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.AssetID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Document is the JSON export layout.
type Document struct {
	ExportTime  time.Time            `json:"export_time"`
	Wallet      string               `json:"wallet"`
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	RowCount    int                  `json:"row_count"`
	Rows        []report.Row         `json:"rows"`
	Totals      report.Totals        `json:"totals"`
	Diagnostics report.Diagnostics   `json:"diagnostics"`
	Mint        []report.MintPayload `json:"mint,omitempty"`
}

// writeJSON exports rows with totals recomputed over the filtered set and a
// mint payload for every losing row.
func (e *ReportExporter) writeJSON(w io.Writer, rep *report.Report, rows []report.Row) error {
	doc := Document{
		ExportTime:  e.now(),
		Wallet:      rep.Wallet,
		RunID:       rep.RunID,
		GeneratedAt: rep.GeneratedAt,
		RowCount:    len(rows),
		Rows:        rows,
		Totals:      report.Total(rows),
		Diagnostics: rep.Diagnostics,
	}
	for _, r := range report.Losses(rows) {
		doc.Mint = append(doc.Mint, report.Mint(rep.Wallet, r))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(report.Places)
}
