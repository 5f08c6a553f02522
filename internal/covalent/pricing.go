package covalent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
	"github.com/rovshanmuradov/losscheck/internal/price"
	"github.com/rovshanmuradov/losscheck/internal/source"
)

type priceSeries struct {
	ContractAddress string `json:"contract_address"`
	Prices          []struct {
		Date  string           `json:"date"`
		Price *decimal.Decimal `json:"price"`
	} `json:"prices"`
}

// HistoricalPrice returns the closing price of asset on the day of date in
// currency. A missing series or a null price is an unknown quote, not an
// error.
func (c *Client) HistoricalPrice(ctx context.Context, chainName, currency, asset string, date time.Time) (price.Quote, error) {
	day := domain.DateOf(date).Format(domain.DateLayout)
	path := fmt.Sprintf("/pricing/historical_by_addresses_v2/%s/%s/%s/",
		url.PathEscape(chainName), url.PathEscape(strings.ToUpper(currency)), url.PathEscape(asset))
	q := url.Values{}
	q.Set("from", day)
	q.Set("to", day)

	var series []priceSeries
	if err := c.get(ctx, path, q, &series); err != nil {
		if IsNotFound(err) {
			return price.Unknown, nil
		}
		return price.Unknown, err
	}
	if len(series) == 0 || len(series[0].Prices) == 0 || series[0].Prices[0].Price == nil {
		c.logger.Debug("No historical price",
			zap.String("asset", asset),
			zap.String("date", day))
		return price.Unknown, nil
	}
	return price.KnownQuote(*series[0].Prices[0].Price), nil
}

// PriceResolver adapts a Client to price.Resolver for one chain and quote
// currency.
type PriceResolver struct {
	client    *Client
	chainName string
	currency  string
}

var _ price.Resolver = (*PriceResolver)(nil)

// NewPriceResolver creates a PriceResolver.
func NewPriceResolver(client *Client, chainName, currency string) *PriceResolver {
	return &PriceResolver{client: client, chainName: chainName, currency: currency}
}

func (r *PriceResolver) Resolve(ctx context.Context, assetID string, date time.Time) (price.Quote, error) {
	return r.client.HistoricalPrice(ctx, r.chainName, r.currency, assetID, date)
}

// Source adapts a Client to source.Source for one chain.
type Source struct {
	client    *Client
	chainName string
}

var _ source.Source = (*Source)(nil)

// NewSource creates a Source.
func NewSource(client *Client, chainName string) *Source {
	return &Source{client: client, chainName: chainName}
}

func (s *Source) Fetch(ctx context.Context, wallet string) ([]domain.RawTransfer, error) {
	records, err := s.client.Transactions(ctx, s.chainName, wallet)
	if err != nil && !errors.Is(err, source.ErrUpstream) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %v", source.ErrUpstream, err)
	}
	return records, err
}
