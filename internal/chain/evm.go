package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeEVMAsset is the sentinel id block explorers use for the chain's gas token.
const NativeEVMAsset = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// EVMCodec handles hex addresses. Comparison ignores case and EIP-55 checksums.
type EVMCodec struct{}

func (EVMCodec) Name() string { return EVM }

func (EVMCodec) Canonical(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return strings.ToLower(common.HexToAddress(trimmed).Hex()), nil
}

func (c EVMCodec) Equal(a, b string) bool { return equalWith(c, a, b) }

func (EVMCodec) NativeAssetID() string { return NativeEVMAsset }
func (EVMCodec) NativeSymbol() string  { return "ETH" }
func (EVMCodec) NativeName() string    { return "Ethereum" }
