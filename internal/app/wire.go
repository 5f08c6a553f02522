package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/config"
	"github.com/rovshanmuradov/losscheck/internal/covalent"
	"github.com/rovshanmuradov/losscheck/internal/normalizer"
	"github.com/rovshanmuradov/losscheck/internal/pnl"
	"github.com/rovshanmuradov/losscheck/internal/price"
	"github.com/rovshanmuradov/losscheck/internal/registry"
	"github.com/rovshanmuradov/losscheck/internal/source"
)

// missTTL bounds how long an unknown quote is remembered in memory.
const missTTL = 5 * time.Minute

// Deps carries optional collaborators for Build.
type Deps struct {
	// InputFile replaces the Covalent transaction source with a JSON file.
	InputFile string
	// Observer receives per-asset outcomes in addition to the log observer.
	Observer pnl.Observer
	// Prices overrides the price resolver chain.
	Prices price.Resolver
}

// Build assembles an Analyzer from configuration. The returned close func
// releases the on-disk price store.
func Build(cfg *config.Config, deps Deps, logger *zap.Logger) (*Analyzer, func() error, error) {
	codec, err := chain.ForChain(cfg.Chain)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.NewStatic(codec, cfg.Assets)
	if err != nil {
		return nil, nil, fmt.Errorf("asset registry: %w", err)
	}

	var client *covalent.Client
	if cfg.CovalentAPIKey != "" {
		client = covalent.NewClient(covalent.Config{
			BaseURL:   cfg.CovalentBaseURL,
			APIKey:    cfg.CovalentAPIKey,
			Timeout:   cfg.RequestTimeout(),
			Retries:   cfg.Retries,
			RateLimit: cfg.RateLimitPerSec,
		}, nil, logger)
	}

	var src source.Source
	switch {
	case deps.InputFile != "":
		src = source.NewFileSource(deps.InputFile, logger)
	case client != nil:
		src = covalent.NewSource(client, cfg.ChainName)
	default:
		return nil, nil, errors.New("no transfer source: set covalent_api_key or provide an input file")
	}

	closer := func() error { return nil }
	resolver := deps.Prices
	if resolver == nil {
		resolver, closer, err = buildPrices(cfg, client, reg, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	observer := pnl.Observer(pnl.NewLogObserver(logger))
	if deps.Observer != nil {
		observer = pnl.MultiObserver{observer, deps.Observer}
	}

	engine := pnl.NewEngine(
		normalizer.New(codec, reg, logger),
		pnl.NewCalculator(resolver, logger, observer),
		cfg.Workers,
		logger,
	)

	logger.Info("Analyzer ready",
		zap.String("chain", codec.Name()),
		zap.String("chain_name", cfg.ChainName),
		zap.Int("registry_assets", reg.Len()),
		zap.Int("workers", cfg.Workers),
		zap.Bool("offline_input", deps.InputFile != ""))

	return NewAnalyzer(src, engine, logger), closer, nil
}

// buildPrices layers memory cache, disk store and id mapping over the
// Covalent resolver. Without a client every quote is unknown.
func buildPrices(cfg *config.Config, client *covalent.Client, reg registry.Registry, logger *zap.Logger) (price.Resolver, func() error, error) {
	closer := func() error { return nil }

	var upstream price.Resolver
	if client != nil {
		upstream = covalent.NewPriceResolver(client, cfg.ChainName, cfg.QuoteCurrency)
	} else {
		logger.Warn("No price provider configured, all prices will be unknown")
		upstream = price.NewTable()
	}
	upstream = price.NewRegistryResolver(upstream, reg)

	if cfg.PriceCacheDir != "" {
		// Stored quotes are only valid for one chain and quote currency.
		dir := filepath.Join(cfg.PriceCacheDir, strings.ToLower(cfg.ChainName+"-"+cfg.QuoteCurrency))
		store, err := price.OpenLevelDBResolver(dir, upstream, logger)
		if err != nil {
			return nil, nil, err
		}
		upstream = store
		closer = store.Close
	}

	return price.NewCachedResolver(upstream, cfg.PriceCacheTTL(), missTTL, logger), closer, nil
}
