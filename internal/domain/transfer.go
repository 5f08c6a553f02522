// internal/domain/transfer.go
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the movement of an asset relative to the tracked wallet.
type Direction int

const (
	Inbound Direction = iota + 1
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Valid reports whether d is one of the declared directions.
func (d Direction) Valid() bool {
	return d == Inbound || d == Outbound
}

// RecordKind tells native-asset transfers apart from token contract logs.
type RecordKind string

const (
	KindNative RecordKind = "native"
	KindToken  RecordKind = "token"
)

// RawTransfer is one transfer as reported by a block-data provider, before
// direction classification and decimal adjustment.
type RawTransfer struct {
	Kind        RecordKind `json:"kind"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	RawAmount   string     `json:"raw_amount"` // base-10 integer in the asset's smallest unit
	Decimals    *int       `json:"decimals,omitempty"`
	AssetID     string     `json:"asset_id"`
	AssetSymbol string     `json:"asset_symbol"`
	AssetName   string     `json:"asset_name"`
	OccurredAt  time.Time  `json:"occurred_at"`
	EventID     string     `json:"event_id"`
	LogIndex    int        `json:"log_index"`
}

// TransferEvent is a normalized movement of an asset into or out of the
// tracked wallet. Self-transfers never reach this shape.
type TransferEvent struct {
	AssetID     string
	AssetSymbol string
	AssetName   string
	Direction   Direction
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	OccurredAt  time.Time
	EventID     string
	LogIndex    int

	// AssumedDecimals is set when the asset precision was unknown and the
	// default was applied.
	AssumedDecimals bool
}

// Date returns the calendar day used for price lookups.
func (e TransferEvent) Date() time.Time {
	return DateOf(e.OccurredAt)
}

// DateOf truncates t to a UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateLayout is the calendar date format shared by pricing and reports.
const DateLayout = "2006-01-02"
