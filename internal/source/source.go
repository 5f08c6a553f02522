// Package source defines where raw transfer records come from.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
)

// ErrUpstream marks failures of the block-data provider, as opposed to a
// wallet that simply has no transfers.
var ErrUpstream = errors.New("upstream provider failure")

// Source fetches every raw transfer touching wallet.
type Source interface {
	Fetch(ctx context.Context, wallet string) ([]domain.RawTransfer, error)
}

// FileSource reads raw transfer records from a JSON file, either a bare
// array or an object with a "transfers" field.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a FileSource.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger.Named("file_source")}
}

// Fetch ignores wallet; the file is expected to hold one wallet's records.
func (s *FileSource) Fetch(ctx context.Context, wallet string) ([]domain.RawTransfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUpstream, s.path, err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, s.path, err)
	}
	s.logger.Info("Records loaded",
		zap.String("path", s.path),
		zap.String("wallet", wallet),
		zap.Int("records", len(records)))
	return records, nil
}

type envelope struct {
	Transfers []domain.RawTransfer `json:"transfers"`
}

// Decode parses raw records from r.
func Decode(r io.Reader) ([]domain.RawTransfer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var records []domain.RawTransfer
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode transfers: %w", err)
	}
	return env.Transfers, nil
}

// Static serves a fixed record set.
type Static []domain.RawTransfer

func (s Static) Fetch(ctx context.Context, _ string) ([]domain.RawTransfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
