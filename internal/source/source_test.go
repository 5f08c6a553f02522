package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
)

const recordsJSON = `[
  {"kind": "token", "from_address": "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
   "to_address": "0x52908400098527886E0F7030069857D2E4169EE7", "raw_amount": "2500000",
   "decimals": 6, "asset_id": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "asset_symbol": "USDC",
   "occurred_at": "2024-01-15T12:00:00Z", "event_id": "0xaa", "log_index": 3},
  {"kind": "native", "from_address": "0x52908400098527886E0F7030069857D2E4169EE7",
   "to_address": "0x8617E340B3D01FA5F11F306F4090FD50E238070D", "raw_amount": "1000000000000000000",
   "occurred_at": "2024-01-16T08:00:00Z", "event_id": "0xbb"}
]`

func TestDecodeArray(t *testing.T) {
	records, err := Decode(strings.NewReader(recordsJSON))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.KindToken, records[0].Kind)
	require.NotNil(t, records[0].Decimals)
	assert.Equal(t, 6, *records[0].Decimals)
	assert.Equal(t, 3, records[0].LogIndex)
	assert.Nil(t, records[1].Decimals)
	assert.Equal(t, 2024, records[1].OccurredAt.Year())
}

func TestDecodeEnvelope(t *testing.T) {
	records, err := Decode(strings.NewReader(`{"transfers": ` + recordsJSON + `}`))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(recordsJSON), 0600))

	records, err := NewFileSource(path, zap.NewNop()).Fetch(context.Background(), "0xwallet")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFileSourceMissingIsUpstreamFailure(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "none.json"), zap.NewNop()).
		Fetch(context.Background(), "0xwallet")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestStaticHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Static{}.Fetch(ctx, "w")
	assert.ErrorIs(t, err, context.Canceled)
}
