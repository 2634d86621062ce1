package server

import (
	"context"

	"github.com/sig-0/credsim/simulate"
)

type consultDelegate func(context.Context, string) (*simulate.Result, error)

type mockConsulter struct {
	consultFn consultDelegate
}

func (m *mockConsulter) Consult(ctx context.Context, rawCPF string) (*simulate.Result, error) {
	if m.consultFn != nil {
		return m.consultFn(ctx, rawCPF)
	}

	return nil, nil
}
