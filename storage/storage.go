package storage

import (
	"context"

	"github.com/sig-0/credsim/storage/types"
)

// Storage is an abstraction over the consultation history.
// Records are append-only
type Storage interface {
	// SaveSimulation persists the given record, assigning its ID and timestamps
	SaveSimulation(context.Context, *types.SimulationRecord) error

	// LatestSimulations fetches up to limit records, newest first.
	// A non-positive limit fetches every record
	LatestSimulations(context.Context, int) ([]*types.SimulationRecord, error)
}
