package flow

import (
	"context"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// SnapshotCondition reads the market condition from the latest regime snapshot
type SnapshotCondition struct {
	snapshots contracts.MarketSnapshotRepository
}

// NewSnapshotCondition adapts a snapshot repository to contracts.MarketConditionSource
func NewSnapshotCondition(snapshots contracts.MarketSnapshotRepository) *SnapshotCondition {
	return &SnapshotCondition{snapshots: snapshots}
}

// GetLatestCondition returns ErrDataUnavailable when no snapshot exists
func (c *SnapshotCondition) GetLatestCondition(ctx context.Context) (contracts.MarketCondition, error) {
	snap, err := c.snapshots.Latest(ctx)
	if err != nil {
		return "", err
	}
	return snap.Condition, nil
}
