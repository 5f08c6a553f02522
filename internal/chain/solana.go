package chain

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// SolanaCodec handles base58 public keys. Base58 is case sensitive, so
// addresses are compared byte for byte after decoding.
type SolanaCodec struct{}

func (SolanaCodec) Name() string { return Solana }

func (SolanaCodec) Canonical(addr string) (string, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	return pk.String(), nil
}

func (c SolanaCodec) Equal(a, b string) bool { return equalWith(c, a, b) }

// NativeAssetID uses the wrapped SOL mint so native and wrapped transfers
// share one ledger.
func (SolanaCodec) NativeAssetID() string { return solana.SolMint.String() }
func (SolanaCodec) NativeSymbol() string  { return "SOL" }
func (SolanaCodec) NativeName() string    { return "Solana" }
