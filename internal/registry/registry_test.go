package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/losscheck/internal/chain"
)

const usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

func TestStaticResolveIsCaseInsensitiveOnEVM(t *testing.T) {
	six := 6
	reg, err := NewStatic(chain.EVMCodec{}, []AssetMetadata{
		{ID: usdc, Symbol: "USDC", Name: "USD Coin", Decimals: &six},
	})
	require.NoError(t, err)

	m, ok := reg.Resolve("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.True(t, ok)
	assert.Equal(t, "USDC", m.Symbol)
	assert.Equal(t, 6, *m.Decimals)
	assert.Equal(t, m.ID, m.PriceID, "price id defaults to the canonical asset id")
	assert.Equal(t, 2, reg.Len())
}

func TestStaticIncludesNativeAsset(t *testing.T) {
	reg, err := NewStatic(chain.EVMCodec{}, nil)
	require.NoError(t, err)

	m, ok := reg.Resolve(chain.NativeEVMAsset)
	require.True(t, ok)
	assert.Equal(t, "ETH", m.Symbol)
	assert.Equal(t, 18, *m.Decimals)
}

func TestStaticRejectsBadEntries(t *testing.T) {
	_, err := NewStatic(chain.EVMCodec{}, []AssetMetadata{{ID: "not-an-address"}})
	assert.ErrorIs(t, err, chain.ErrInvalidAddress)

	tooMany := 80
	_, err = NewStatic(chain.EVMCodec{}, []AssetMetadata{{ID: usdc, Decimals: &tooMany}})
	assert.Error(t, err)
}

func TestStaticUnknownAsset(t *testing.T) {
	reg, err := NewStatic(chain.EVMCodec{}, nil)
	require.NoError(t, err)

	_, ok := reg.Resolve(usdc)
	assert.False(t, ok)
	_, ok = reg.Resolve("garbage")
	assert.False(t, ok)
}
