package price

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/registry"
)

var day = time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)

type countingResolver struct {
	calls atomic.Int32
	quote Quote
	err   error
}

func (c *countingResolver) Resolve(ctx context.Context, assetID string, date time.Time) (Quote, error) {
	c.calls.Add(1)
	return c.quote, c.err
}

func TestTableResolveByDay(t *testing.T) {
	tbl := NewTable().Set("0xabc", day, decimal.NewFromInt(42))

	q, err := tbl.Resolve(context.Background(), "0xabc", day.Add(-10*time.Hour))
	require.NoError(t, err)
	assert.True(t, q.Known)
	assert.True(t, decimal.NewFromInt(42).Equal(q.Price))

	q, err = tbl.Resolve(context.Background(), "0xabc", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, q.Known)
}

func TestTableKeepsSolanaMintCase(t *testing.T) {
	upper := "So11111111111111111111111111111111111111112"
	lower := "so11111111111111111111111111111111111111112"
	tbl := NewTable().Set(upper, day, decimal.NewFromInt(150))

	q, err := tbl.Resolve(context.Background(), upper, day)
	require.NoError(t, err)
	assert.True(t, q.Known)

	q, err = tbl.Resolve(context.Background(), lower, day)
	require.NoError(t, err)
	assert.False(t, q.Known, "mints differing only in case are distinct assets")
}

func TestLevelDBResolverKeepsSolanaMintCase(t *testing.T) {
	upper := "So11111111111111111111111111111111111111112"
	lower := "so11111111111111111111111111111111111111112"
	next := ResolverFunc(func(ctx context.Context, assetID string, date time.Time) (Quote, error) {
		if assetID == upper {
			return KnownQuote(decimal.NewFromInt(150)), nil
		}
		return KnownQuote(decimal.NewFromInt(2)), nil
	})
	r, err := OpenLevelDBResolver(filepath.Join(t.TempDir(), "prices"), next, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	q, err := r.Resolve(context.Background(), upper, day)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(q.Price))

	q, err = r.Resolve(context.Background(), lower, day)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2).Equal(q.Price))
}

func TestTableHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTable().Resolve(ctx, "0xabc", day)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedResolverMemoizes(t *testing.T) {
	next := &countingResolver{quote: KnownQuote(decimal.NewFromInt(7))}
	c := NewCachedResolver(next, time.Hour, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		q, err := c.Resolve(context.Background(), "0xabc", day)
		require.NoError(t, err)
		assert.True(t, q.Known)
	}
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCachedResolverDoesNotCacheErrors(t *testing.T) {
	next := &countingResolver{err: errors.New("boom")}
	c := NewCachedResolver(next, time.Hour, time.Minute, zap.NewNop())

	_, err := c.Resolve(context.Background(), "0xabc", day)
	require.Error(t, err)
	_, err = c.Resolve(context.Background(), "0xabc", day)
	require.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestLevelDBResolverPersistsKnownQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices")
	next := &countingResolver{quote: KnownQuote(decimal.RequireFromString("1850.25"))}

	r, err := OpenLevelDBResolver(path, next, zap.NewNop())
	require.NoError(t, err)
	q, err := r.Resolve(context.Background(), "0xabc", day)
	require.NoError(t, err)
	assert.True(t, q.Known)
	require.NoError(t, r.Close())

	// A reopened store answers without the upstream.
	next.err = errors.New("upstream down")
	r, err = OpenLevelDBResolver(path, next, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	q, err = r.Resolve(context.Background(), "0xabc", day)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1850.25").Equal(q.Price))
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestLevelDBResolverSkipsUnknown(t *testing.T) {
	next := &countingResolver{quote: Unknown}
	r, err := OpenLevelDBResolver(filepath.Join(t.TempDir(), "prices"), next, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 2; i++ {
		q, err := r.Resolve(context.Background(), "0xabc", day)
		require.NoError(t, err)
		assert.False(t, q.Known)
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestLevelDBResolverSkipsCurrentDay(t *testing.T) {
	next := &countingResolver{quote: KnownQuote(decimal.NewFromInt(3))}
	r, err := OpenLevelDBResolver(filepath.Join(t.TempDir(), "prices"), next, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()
	r.now = func() time.Time { return day.Add(2 * time.Hour) }

	for i := 0; i < 2; i++ {
		q, err := r.Resolve(context.Background(), "0xabc", day)
		require.NoError(t, err)
		assert.True(t, q.Known)
	}
	assert.Equal(t, int32(2), next.calls.Load(), "an open day is always refetched")

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "0xabc", day.AddDate(0, 0, -1))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), next.calls.Load(), "a closed day is stored")
}

func TestRegistryResolverMapsPriceID(t *testing.T) {
	weth := "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	reg, err := registry.NewStatic(chain.EVMCodec{}, []registry.AssetMetadata{
		{ID: weth, Symbol: "WETH", PriceID: chain.NativeEVMAsset},
	})
	require.NoError(t, err)

	var asked string
	next := ResolverFunc(func(ctx context.Context, assetID string, date time.Time) (Quote, error) {
		asked = assetID
		return KnownQuote(decimal.NewFromInt(1)), nil
	})
	r := NewRegistryResolver(next, reg)

	_, err = r.Resolve(context.Background(), weth, day)
	require.NoError(t, err)
	assert.Equal(t, chain.NativeEVMAsset, asked)

	_, err = r.Resolve(context.Background(), "0x0000000000000000000000000000000000000001", day)
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", asked)
}
