package simulate

import (
	"context"

	"github.com/sig-0/credsim/storage/types"
)

type (
	discoverDelegate func(context.Context, string) ([]*types.Institution, error)
	simulateDelegate func(context.Context, string, int64, types.ModalityCode) (*types.RawQuote, error)
)

type mockDiscoverer struct {
	discoverFn discoverDelegate
}

func (m *mockDiscoverer) Discover(ctx context.Context, cpf string) ([]*types.Institution, error) {
	if m.discoverFn != nil {
		return m.discoverFn(ctx, cpf)
	}

	return nil, nil
}

type mockSimulator struct {
	simulateFn simulateDelegate
}

func (m *mockSimulator) Simulate(
	ctx context.Context,
	cpf string,
	institutionID int64,
	code types.ModalityCode,
) (*types.RawQuote, error) {
	if m.simulateFn != nil {
		return m.simulateFn(ctx, cpf, institutionID, code)
	}

	return nil, nil
}
