// Package normalizer converts provider transfer records into direction-tagged
// TransferEvents relative to one tracked wallet.
package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/registry"
)

const (
	// DefaultDecimals is applied when neither the record nor the registry
	// knows the asset precision.
	DefaultDecimals = 18
	maxDecimals     = 77 // 10^77 < 2^256 < 10^78
	unknownSymbol   = "UNKNOWN"
)

// Malformed-record reasons.
var (
	ErrMissingField  = errors.New("missing field")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrBadDecimals   = errors.New("decimals out of range")
)

// SkippedRecord identifies one raw record that could not be converted.
type SkippedRecord struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

// Result is the normalized stream plus per-category drop counts.
type Result struct {
	Events        []domain.TransferEvent
	Skipped       []SkippedRecord
	SelfTransfers int
	Unrelated     int
	Duplicates    int
	ZeroAmount    int
	AssumedCount  int
}

// Normalizer classifies raw records against a tracked wallet.
type Normalizer struct {
	codec    chain.AddressCodec
	registry registry.Registry
	logger   *zap.Logger
}

// New creates a normalizer. reg may be nil.
func New(codec chain.AddressCodec, reg registry.Registry, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		codec:    codec,
		registry: reg,
		logger:   logger.Named("normalizer"),
	}
}

// Normalize converts records for wallet. Only an unparsable wallet address is
// an error; bad records are skipped and listed in Result.Skipped.
func (n *Normalizer) Normalize(wallet string, records []domain.RawTransfer) (*Result, error) {
	tracked, err := n.codec.Canonical(wallet)
	if err != nil {
		return nil, fmt.Errorf("tracked wallet: %w", err)
	}

	res := &Result{Events: make([]domain.TransferEvent, 0, len(records))}
	seen := make(map[string]struct{}, len(records))

	for i, rec := range records {
		ev, outcome, err := n.convert(tracked, rec)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRecord{Index: i, EventID: rec.EventID, Reason: err.Error()})
			n.logger.Debug("Skipping malformed record",
				zap.Int("index", i),
				zap.String("event_id", rec.EventID),
				zap.Error(err))
			continue
		}

		switch outcome {
		case outcomeSelf:
			res.SelfTransfers++
			continue
		case outcomeUnrelated:
			res.Unrelated++
			continue
		case outcomeZero:
			res.ZeroAmount++
			continue
		}

		key := dedupKey(ev)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		if ev.AssumedDecimals {
			res.AssumedCount++
		}
		res.Events = append(res.Events, ev)
	}

	n.logger.Info("Records normalized",
		zap.Int("records", len(records)),
		zap.Int("events", len(res.Events)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("self_transfers", res.SelfTransfers),
		zap.Int("unrelated", res.Unrelated),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("assumed_decimals", res.AssumedCount))

	return res, nil
}

type outcome int

const (
	outcomeEvent outcome = iota
	outcomeSelf
	outcomeUnrelated
	outcomeZero
)

func (n *Normalizer) convert(tracked string, rec domain.RawTransfer) (domain.TransferEvent, outcome, error) {
	var ev domain.TransferEvent

	if strings.TrimSpace(rec.EventID) == "" {
		return ev, 0, fmt.Errorf("%w: event id", ErrMissingField)
	}
	if rec.OccurredAt.IsZero() {
		return ev, 0, fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	if strings.TrimSpace(rec.FromAddress) == "" || strings.TrimSpace(rec.ToAddress) == "" {
		return ev, 0, fmt.Errorf("%w: sender or recipient", ErrMissingField)
	}
	from, err := n.codec.Canonical(rec.FromAddress)
	if err != nil {
		return ev, 0, fmt.Errorf("sender: %w", err)
	}
	to, err := n.codec.Canonical(rec.ToAddress)
	if err != nil {
		return ev, 0, fmt.Errorf("recipient: %w", err)
	}

	fromWallet, toWallet := from == tracked, to == tracked
	switch {
	case fromWallet && toWallet:
		return ev, outcomeSelf, nil
	case fromWallet:
		ev.Direction = domain.Outbound
	case toWallet:
		ev.Direction = domain.Inbound
	default:
		return ev, outcomeUnrelated, nil
	}

	assetID, err := n.assetID(rec)
	if err != nil {
		return ev, 0, err
	}
	meta, known := n.lookup(assetID)

	decimals, assumed, err := resolveDecimals(rec.Decimals, meta, known)
	if err != nil {
		return ev, 0, err
	}
	qty, err := parseQuantity(rec.RawAmount, decimals)
	if err != nil {
		return ev, 0, err
	}
	if qty.IsZero() {
		return ev, outcomeZero, nil
	}

	ev.AssetID = assetID
	ev.AssetSymbol = firstNonEmpty(rec.AssetSymbol, meta.Symbol, unknownSymbol)
	ev.AssetName = firstNonEmpty(rec.AssetName, meta.Name, ev.AssetSymbol)
	ev.Quantity = qty
	ev.OccurredAt = rec.OccurredAt.UTC()
	ev.EventID = strings.TrimSpace(rec.EventID)
	ev.LogIndex = rec.LogIndex
	ev.AssumedDecimals = assumed
	return ev, outcomeEvent, nil
}

func (n *Normalizer) assetID(rec domain.RawTransfer) (string, error) {
	if rec.Kind == domain.KindNative {
		return n.codec.NativeAssetID(), nil
	}
	if strings.TrimSpace(rec.AssetID) == "" {
		return "", fmt.Errorf("%w: asset id", ErrMissingField)
	}
	if strings.EqualFold(strings.TrimSpace(rec.AssetID), n.codec.NativeAssetID()) {
		return n.codec.NativeAssetID(), nil
	}
	id, err := n.codec.Canonical(rec.AssetID)
	if err != nil {
		return "", fmt.Errorf("asset id: %w", err)
	}
	return id, nil
}

func (n *Normalizer) lookup(assetID string) (registry.AssetMetadata, bool) {
	if n.registry == nil {
		return registry.AssetMetadata{}, false
	}
	return n.registry.Resolve(assetID)
}

func resolveDecimals(fromRecord *int, meta registry.AssetMetadata, known bool) (int, bool, error) {
	var d int
	switch {
	case fromRecord != nil:
		d = *fromRecord
	case known && meta.Decimals != nil:
		d = *meta.Decimals
	default:
		return DefaultDecimals, true, nil
	}
	if d < 0 || d > maxDecimals {
		return 0, false, fmt.Errorf("%w: %d", ErrBadDecimals, d)
	}
	return d, false, nil
}

// parseQuantity divides a base-10 integer amount by 10^decimals without
// passing through floating point.
func parseQuantity(raw string, decimals int) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount", ErrMissingField)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, raw, err)
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)), nil
}

func dedupKey(ev domain.TransferEvent) string {
	return fmt.Sprintf("%s|%d|%s", chain.FoldID(ev.EventID), ev.LogIndex, ev.AssetID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
