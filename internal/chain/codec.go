// Package chain canonicalizes wallet and asset addresses for the chains the
// normalizer understands.
package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned for addresses the codec cannot parse.
var ErrInvalidAddress = errors.New("invalid address")

// AddressCodec canonicalizes and compares addresses of one chain family.
type AddressCodec interface {
	Name() string
	Canonical(addr string) (string, error)
	Equal(a, b string) bool
	NativeAssetID() string
	NativeSymbol() string
	NativeName() string
}

const (
	EVM    = "evm"
	Solana = "solana"
)

// ForChain returns the codec registered for name.
func ForChain(name string) (AddressCodec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EVM, "ethereum", "eth":
		return EVMCodec{}, nil
	case Solana, "sol":
		return SolanaCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported chain %q", name)
	}
}

func equalWith(c AddressCodec, a, b string) bool {
	ca, err := c.Canonical(a)
	if err != nil {
		return false
	}
	cb, err := c.Canonical(b)
	if err != nil {
		return false
	}
	return ca == cb
}

// FoldID lowercases 0x-prefixed hex identifiers and returns anything else
// unchanged. Base58 ids never start with "0x" and are case-sensitive.
func FoldID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 2 && (id[:2] == "0x" || id[:2] == "0X") {
		return strings.ToLower(id)
	}
	return id
}
