// Package registry supplies asset metadata (symbol, precision, pricing id)
// to the normalizer and the price resolvers.
package registry

import (
	"fmt"
	"strings"

	"github.com/rovshanmuradov/losscheck/internal/chain"
)

// AssetMetadata describes one asset. Decimals is nil when unknown.
type AssetMetadata struct {
	ID       string `mapstructure:"id" json:"id"`
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Name     string `mapstructure:"name" json:"name"`
	Decimals *int   `mapstructure:"decimals" json:"decimals,omitempty"`
	PriceID  string `mapstructure:"price_id" json:"price_id,omitempty"`
}

// Registry resolves asset metadata by canonical asset id.
type Registry interface {
	Resolve(assetID string) (AssetMetadata, bool)
}

// Static is an immutable in-memory registry.
type Static struct {
	codec  chain.AddressCodec
	assets map[string]AssetMetadata
}

// NewStatic indexes entries by their canonical id. The chain's native asset
// is always present, with 18 decimals on EVM and 9 on Solana unless an entry
// overrides it.
func NewStatic(codec chain.AddressCodec, entries []AssetMetadata) (*Static, error) {
	s := &Static{
		codec:  codec,
		assets: make(map[string]AssetMetadata, len(entries)+1),
	}

	native := AssetMetadata{
		ID:       codec.NativeAssetID(),
		Symbol:   codec.NativeSymbol(),
		Name:     codec.NativeName(),
		Decimals: intPtr(nativeDecimals(codec)),
		PriceID:  codec.NativeAssetID(),
	}
	s.assets[native.ID] = native

	for i, e := range entries {
		id, err := codec.Canonical(e.ID)
		if err != nil {
			return nil, fmt.Errorf("asset entry %d: %w", i, err)
		}
		if e.Decimals != nil && (*e.Decimals < 0 || *e.Decimals > 77) {
			return nil, fmt.Errorf("asset entry %d (%s): decimals out of range", i, e.ID)
		}
		e.ID = id
		if strings.TrimSpace(e.PriceID) == "" {
			e.PriceID = id
		}
		s.assets[id] = e
	}
	return s, nil
}

func (s *Static) Resolve(assetID string) (AssetMetadata, bool) {
	id, err := s.codec.Canonical(assetID)
	if err != nil {
		return AssetMetadata{}, false
	}
	m, ok := s.assets[id]
	return m, ok
}

// Len returns the number of known assets, the native asset included.
func (s *Static) Len() int { return len(s.assets) }

func nativeDecimals(codec chain.AddressCodec) int {
	if codec.Name() == chain.Solana {
		return 9
	}
	return 18
}

func intPtr(v int) *int { return &v }
