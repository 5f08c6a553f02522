package pnl

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/normalizer"
	"github.com/rovshanmuradov/losscheck/internal/price"
)

func TestGroupPartitionsEvents(t *testing.T) {
	ids := []string{"c", "a", "b"}
	rng := rand.New(rand.NewSource(7))
	var events []domain.TransferEvent
	for i := 0; i < 60; i++ {
		e := ev(domain.Inbound, "1", d1, "x")
		e.AssetID = ids[rng.Intn(len(ids))]
		e.LogIndex = i
		events = append(events, e)
	}

	g := Group(events)

	total := 0
	for _, id := range g.Order {
		grp := g.ByAsset[id]
		total += len(grp)
		for i, e := range grp {
			assert.Equal(t, id, e.AssetID)
			if i > 0 {
				assert.Less(t, grp[i-1].LogIndex, e.LogIndex, "relative order kept")
			}
		}
	}
	assert.Equal(t, len(events), total)
	assert.Equal(t, events[0].AssetID, g.Order[0])
}

func TestGroupEmpty(t *testing.T) {
	g := Group(nil)
	assert.Zero(t, g.Len())
}

func TestSummarizeKeepsFirstAppearanceOrder(t *testing.T) {
	var events []domain.TransferEvent
	for _, id := range []string{"z", "m", "a", "m", "z", "q"} {
		e := ev(domain.Inbound, "1", d1, id)
		e.AssetID = id
		events = append(events, e)
	}

	eng := NewEngine(nil, newCalc(price.NewTable()), 2, zap.NewNop())
	out, err := eng.Summarize(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, out, 4)

	got := make([]string, len(out))
	for i, s := range out {
		got[i] = s.AssetID
	}
	assert.Equal(t, []string{"z", "m", "a", "q"}, got)
	assert.True(t, out[1].TotalBoughtQty.Equal(dec("2")))
}

func TestSummarizeCanceledDiscardsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := price.ResolverFunc(func(ctx context.Context, _ string, _ time.Time) (price.Quote, error) {
		cancel()
		<-ctx.Done()
		return price.Unknown, ctx.Err()
	})

	events := []domain.TransferEvent{ev(domain.Inbound, "1", d1, "a")}
	b := ev(domain.Inbound, "1", d1, "b")
	b.AssetID = "other"
	events = append(events, b)

	eng := NewEngine(nil, newCalc(slow), 1, zap.NewNop())
	out, err := eng.Summarize(ctx, events)
	require.ErrorIs(t, err, ErrCanceled)
	assert.Nil(t, out)
}

func TestEngineRunEndToEnd(t *testing.T) {
	const (
		wallet = "0x52908400098527886E0F7030069857D2E4169EE7"
		other  = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	)
	decimals := 6
	records := []domain.RawTransfer{
		{Kind: domain.KindToken, FromAddress: other, ToAddress: wallet, RawAmount: "10000000",
			Decimals: &decimals, AssetID: asset, AssetSymbol: "USDC", OccurredAt: d1, EventID: "0x1"},
		{Kind: domain.KindToken, FromAddress: wallet, ToAddress: other, RawAmount: "15000000",
			Decimals: &decimals, AssetID: asset, AssetSymbol: "USDC", OccurredAt: d2, EventID: "0x2"},
		{Kind: domain.KindToken, FromAddress: wallet, ToAddress: wallet, RawAmount: "1",
			Decimals: &decimals, AssetID: asset, AssetSymbol: "USDC", OccurredAt: d2, EventID: "0x3"},
	}
	prices := price.NewTable().
		Set(asset, d1, dec("1")).
		Set(asset, d2, dec("2"))

	n := normalizer.New(chain.EVMCodec{}, nil, zap.NewNop())
	eng := NewEngine(n, newCalc(prices), 0, zap.NewNop())

	res, err := eng.Run(context.Background(), wallet, records)
	require.NoError(t, err)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, 1, res.Normalization.SelfTransfers)

	sum := res.Summaries[0]
	assert.True(t, sum.TotalPnL.Equal(dec("10")))
	assert.True(t, sum.CurrentBalance.IsZero())
}

func TestEngineRunRejectsBadWallet(t *testing.T) {
	n := normalizer.New(chain.EVMCodec{}, nil, zap.NewNop())
	eng := NewEngine(n, newCalc(price.NewTable()), 1, zap.NewNop())
	_, err := eng.Run(context.Background(), "not-a-wallet", nil)
	require.ErrorIs(t, err, chain.ErrInvalidAddress)
}
