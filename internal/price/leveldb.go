package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
)

// LevelDBResolver keeps known quotes for closed UTC days on disk. Entries
// never expire. Unknown quotes and quotes for the current day are not stored.
type LevelDBResolver struct {
	next   Resolver
	db     *leveldb.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenLevelDBResolver opens (or creates) the store at path.
func OpenLevelDBResolver(path string, next Resolver, logger *zap.Logger) (*LevelDBResolver, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open price store %s: %w", path, err)
	}
	return &LevelDBResolver{
		next:   next,
		db:     db,
		logger: logger.Named("price_store"),
		now:    time.Now,
	}, nil
}

func (r *LevelDBResolver) Resolve(ctx context.Context, assetID string, date time.Time) (Quote, error) {
	key := []byte(cacheKey(assetID, date))

	raw, err := r.db.Get(key, nil)
	switch {
	case err == nil:
		p, perr := decimal.NewFromString(string(raw))
		if perr == nil {
			return KnownQuote(p), nil
		}
		r.logger.Warn("Corrupt stored price, refetching", zap.ByteString("key", key), zap.Error(perr))
	case !errors.Is(err, leveldb.ErrNotFound):
		r.logger.Warn("Price store read failed", zap.ByteString("key", key), zap.Error(err))
	}

	q, err := r.next.Resolve(ctx, assetID, date)
	if err != nil || !q.Known {
		return q, err
	}
	if !domain.DateOf(date).Before(domain.DateOf(r.now())) {
		return q, nil
	}
	if err := r.db.Put(key, []byte(q.Price.String()), nil); err != nil {
		r.logger.Warn("Price store write failed", zap.ByteString("key", key), zap.Error(err))
	}
	return q, nil
}

// Close releases the underlying database.
func (r *LevelDBResolver) Close() error {
	return r.db.Close()
}
