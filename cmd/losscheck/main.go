// ====================================
// File: cmd/losscheck/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/app"
	"github.com/rovshanmuradov/losscheck/internal/config"
	"github.com/rovshanmuradov/losscheck/internal/export"
	"github.com/rovshanmuradov/losscheck/internal/logger"
	"github.com/rovshanmuradov/losscheck/internal/metrics"
	"github.com/rovshanmuradov/losscheck/internal/pnl"
	"github.com/rovshanmuradov/losscheck/internal/report"
	"github.com/rovshanmuradov/losscheck/internal/source"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	wallet := flag.String("wallet", "", "Wallet address to analyze (overrides config)")
	input := flag.String("input", "", "JSON file of raw transfer records instead of Covalent")
	format := flag.String("format", "table", "Output format: table, csv or json")
	out := flag.String("out", "", "Output file for csv/json; '-' for stdout, empty for a generated name in output_dir")
	tokens := flag.String("tokens", "", "Comma-separated symbols or asset ids to include")
	onlyLosses := flag.Bool("losses", false, "Export only assets with a negative PnL")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *wallet != "" {
		cfg.Wallet = *wallet
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid wallet: %v", err)
		}
	}
	if cfg.Wallet == "" {
		log.Fatal("No wallet given: use -wallet or set wallet in config")
	}

	appLogger, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
		Pretty:      true,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	if err := run(rootCtx, cfg, appLogger, options{
		input:      *input,
		format:     *format,
		out:        *out,
		tokens:     splitList(*tokens),
		onlyLosses: *onlyLosses,
	}); err != nil {
		code := exitCode(err)
		appLogger.LogError("Analysis failed", err, zap.Int("exit_code", code))
		_ = appLogger.Sync()
		os.Exit(code)
	}
}

type options struct {
	input      string
	format     string
	out        string
	tokens     []string
	onlyLosses bool
}

func run(ctx context.Context, cfg *config.Config, appLogger *logger.Logger, opts options) error {
	log := appLogger.WithWallet(cfg.Wallet)
	end := appLogger.TrackPerformance("analyze")
	defer end()

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, collector, appLogger.WithComponent("metrics"))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	analyzer, closePrices, err := app.Build(cfg, app.Deps{InputFile: opts.input, Observer: collector}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePrices(); err != nil {
			log.Warn("Closing price store failed", zap.Error(err))
		}
	}()

	rep, err := analyzer.Analyze(ctx, cfg.Wallet, app.Options{Symbols: opts.tokens})
	if err != nil {
		return err
	}

	if opts.format == "table" {
		fmt.Print(report.RenderTable(rep))
		return nil
	}

	f, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	exporter := export.NewReportExporter(log)
	exportOpts := export.Options{
		Format:     f,
		OnlyLosses: opts.onlyLosses,
		OutputDir:  cfg.OutputDir,
	}

	switch opts.out {
	case "-":
		_, err = exporter.Write(os.Stdout, rep, exportOpts)
		return err
	case "":
		path, err := exporter.Export(rep, exportOpts)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	default:
		return writeFile(opts.out, exporter, rep, exportOpts)
	}
}

func writeFile(path string, exporter *export.ReportExporter, rep *report.Report, opts export.Options) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return writeAndClose(file, exporter, rep, opts)
}

// writeAndClose exports rep to w. A failed close is reported when the write
// itself succeeded.
func writeAndClose(w io.WriteCloser, exporter *export.ReportExporter, rep *report.Report, opts export.Options) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	_, err = exporter.Write(w, rep, opts)
	return err
}

func serveMetrics(addr string, collector *metrics.Collector, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// exitCode separates provider outages and interrupts from other failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, pnl.ErrCanceled), errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, source.ErrUpstream):
		return 3
	default:
		return 1
	}
}
