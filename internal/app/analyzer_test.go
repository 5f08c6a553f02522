package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/config"
	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/metrics"
	"github.com/rovshanmuradov/losscheck/internal/normalizer"
	"github.com/rovshanmuradov/losscheck/internal/pnl"
	"github.com/rovshanmuradov/losscheck/internal/price"
	"github.com/rovshanmuradov/losscheck/internal/source"
)

const (
	wallet = "0x52908400098527886E0F7030069857D2E4169EE7"
	other  = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	usdc   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

var (
	day1 = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 11, 10, 0, 0, 0, time.UTC)
)

func intp(v int) *int { return &v }

func fixtureRecords() []domain.RawTransfer {
	return []domain.RawTransfer{
		{Kind: domain.KindNative, FromAddress: other, ToAddress: wallet, RawAmount: "2000000000000000000",
			OccurredAt: day1, EventID: "0x01", LogIndex: -1},
		{Kind: domain.KindNative, FromAddress: wallet, ToAddress: other, RawAmount: "1000000000000000000",
			OccurredAt: day2, EventID: "0x02", LogIndex: -1},
		{Kind: domain.KindToken, FromAddress: other, ToAddress: wallet, RawAmount: "100000000",
			Decimals: intp(6), AssetID: usdc, AssetSymbol: "USDC", OccurredAt: day1, EventID: "0x03", LogIndex: 2},
		{Kind: domain.KindToken, FromAddress: wallet, ToAddress: wallet, RawAmount: "5",
			Decimals: intp(6), AssetID: usdc, AssetSymbol: "USDC", OccurredAt: day2, EventID: "0x04"},
	}
}

func fixturePrices() *price.Table {
	eth := chain.NativeEVMAsset
	return price.NewTable().
		Set(eth, day1, decimal.NewFromInt(3000)).
		Set(eth, day2, decimal.NewFromInt(2000)).
		Set(usdc, day1, decimal.NewFromInt(1))
}

func newAnalyzer(src source.Source, prices price.Resolver) *Analyzer {
	engine := pnl.NewEngine(
		normalizer.New(chain.EVMCodec{}, nil, zap.NewNop()),
		pnl.NewCalculator(prices, zap.NewNop(), nil),
		2,
		zap.NewNop(),
	)
	a := NewAnalyzer(src, engine, zap.NewNop())
	a.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestAnalyze(t *testing.T) {
	rep, err := newAnalyzer(source.Static(fixtureRecords()), fixturePrices()).
		Analyze(context.Background(), wallet, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, wallet, rep.Wallet)
	require.Len(t, rep.Rows, 2)

	eth := rep.Rows[0]
	assert.Equal(t, "ETH", eth.Symbol)
	assert.Equal(t, "6000.00", eth.BoughtValue.StringFixed(2))
	assert.Equal(t, "2000.00", eth.SoldValue.StringFixed(2))
	assert.Equal(t, "-4000.00", eth.TotalPnL.StringFixed(2))
	assert.Equal(t, "2024-01-11", eth.LastTradeDate)

	usdcRow := rep.Rows[1]
	assert.Equal(t, "USDC", usdcRow.Symbol)
	assert.True(t, usdcRow.Balance.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, 4, rep.Diagnostics.Records)
	assert.Equal(t, 3, rep.Diagnostics.Events)
	assert.Equal(t, 1, rep.Diagnostics.SelfTransfers)
	assert.Equal(t, 2, rep.Totals.Assets)
}

func TestAnalyzeSymbolFilter(t *testing.T) {
	rep, err := newAnalyzer(source.Static(fixtureRecords()), fixturePrices()).
		Analyze(context.Background(), wallet, Options{Symbols: []string{" usdc "}})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "USDC", rep.Rows[0].Symbol)
}

func TestFilterSymbolsMatchesIDs(t *testing.T) {
	events := []domain.TransferEvent{
		{AssetID: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", AssetSymbol: "USDC"},
		{AssetID: "So11111111111111111111111111111111111111112", AssetSymbol: "SOL"},
		{AssetID: "so11111111111111111111111111111111111111112", AssetSymbol: "FAKE"},
	}

	got := filterSymbols(events, []string{"0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48"})
	require.Len(t, got, 1)
	assert.Equal(t, "USDC", got[0].AssetSymbol)

	got = filterSymbols(events, []string{"So11111111111111111111111111111111111111112"})
	require.Len(t, got, 1)
	assert.Equal(t, "SOL", got[0].AssetSymbol)

	assert.Len(t, filterSymbols(events, nil), 3)
}

func TestAnalyzeEmptyWalletIsNotAnError(t *testing.T) {
	rep, err := newAnalyzer(source.Static(nil), fixturePrices()).
		Analyze(context.Background(), wallet, Options{})
	require.NoError(t, err)
	assert.Empty(t, rep.Rows)
	assert.True(t, rep.Totals.TotalPnL.IsZero())
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, string) ([]domain.RawTransfer, error) {
	return nil, fmt.Errorf("%w: status 503", source.ErrUpstream)
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	_, err := newAnalyzer(failingSource{}, fixturePrices()).
		Analyze(context.Background(), wallet, Options{})
	require.ErrorIs(t, err, source.ErrUpstream)
}

func TestAnalyzeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer(source.Static(fixtureRecords()), fixturePrices()).Analyze(ctx, wallet, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pnl.ErrCanceled))
}

func TestBuildOfflineWithMetrics(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
	  {"kind":"native","from_address":"`+other+`","to_address":"`+wallet+`",
	   "raw_amount":"1000000000000000000","occurred_at":"2024-01-10T10:00:00Z","event_id":"0x01"}
	]`), 0600))

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.PriceCacheDir = filepath.Join(dir, "prices")

	collector := metrics.NewCollector()
	a, closeFn, err := Build(cfg, Deps{InputFile: input, Observer: collector}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	rep, err := a.Analyze(context.Background(), wallet, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "ETH", rep.Rows[0].Symbol)
	assert.Equal(t, "low", string(rep.Rows[0].Confidence))
}

func TestBuildWithCovalent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "" {
			fmt.Fprint(w, `{"data":[{"prices":[{"price":2500}]}],"error":false}`)
			return
		}
		fmt.Fprint(w, `{"data":{"items":[
		  {"tx_hash":"0x01","block_signed_at":"2024-01-10T10:00:00Z","successful":true,
		   "from_address":"`+other+`","to_address":"`+wallet+`","value":"1000000000000000000","log_events":[]}
		]},"error":false}`)
	}))
	defer srv.Close()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.CovalentAPIKey = "ckey_test"
	cfg.CovalentBaseURL = srv.URL

	a, closeFn, err := Build(cfg, Deps{}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	rep, err := a.Analyze(context.Background(), wallet, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "2500.00", rep.Rows[0].BoughtValue.StringFixed(2))
	assert.Equal(t, "high", string(rep.Rows[0].Confidence))
}

func TestBuildWithoutSource(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	_, _, err = Build(cfg, Deps{}, zap.NewNop())
	assert.Error(t, err)
}
