package mock

import (
	"context"

	"github.com/sig-0/credsim/storage/types"
)

type (
	SaveSimulationDelegate    func(context.Context, *types.SimulationRecord) error
	LatestSimulationsDelegate func(context.Context, int) ([]*types.SimulationRecord, error)
)

type Storage struct {
	SaveSimulationFn    SaveSimulationDelegate
	LatestSimulationsFn LatestSimulationsDelegate
}

func (m *Storage) SaveSimulation(ctx context.Context, record *types.SimulationRecord) error {
	if m.SaveSimulationFn != nil {
		return m.SaveSimulationFn(ctx, record)
	}

	return nil
}

func (m *Storage) LatestSimulations(
	ctx context.Context,
	limit int,
) ([]*types.SimulationRecord, error) {
	if m.LatestSimulationsFn != nil {
		return m.LatestSimulationsFn(ctx, limit)
	}

	return nil, nil
}
