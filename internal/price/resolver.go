// Package price defines the historical price lookup used by the cost-basis
// calculator and the adapters that back it.
package price

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a unit price in the reference currency. Known distinguishes a
// verified zero price from missing data.
type Quote struct {
	Price decimal.Decimal
	Known bool
}

// KnownQuote builds a verified quote.
func KnownQuote(p decimal.Decimal) Quote { return Quote{Price: p, Known: true} }

// Unknown is the quote returned when the provider has no data.
var Unknown = Quote{}

// Resolver returns the price of assetID on the calendar day of date.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, assetID string, date time.Time) (Quote, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, assetID string, date time.Time) (Quote, error)

func (f ResolverFunc) Resolve(ctx context.Context, assetID string, date time.Time) (Quote, error) {
	return f(ctx, assetID, date)
}
