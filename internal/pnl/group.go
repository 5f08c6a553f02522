package pnl

import "github.com/rovshanmuradov/losscheck/internal/domain"

// Groups is a partition of events by asset id. Order lists asset ids by
// first appearance; each group keeps the relative input order.
type Groups struct {
	Order   []string
	ByAsset map[string][]domain.TransferEvent
}

// Group partitions events by AssetID. It performs no validation.
func Group(events []domain.TransferEvent) Groups {
	g := Groups{ByAsset: make(map[string][]domain.TransferEvent)}
	for _, ev := range events {
		if _, ok := g.ByAsset[ev.AssetID]; !ok {
			g.Order = append(g.Order, ev.AssetID)
		}
		g.ByAsset[ev.AssetID] = append(g.ByAsset[ev.AssetID], ev)
	}
	return g
}

// Len returns the number of assets.
func (g Groups) Len() int { return len(g.Order) }
