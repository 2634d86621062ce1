package sql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/credsim/storage/types"
)

type (
	queryDelegate    func(context.Context, string, ...any) (pgx.Rows, error)
	queryRowDelegate func(context.Context, string, ...any) pgx.Row
)

type mockQuerier struct {
	queryFn    queryDelegate
	queryRowFn queryRowDelegate
}

func (m *mockQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}

	return &mockRows{}, nil
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}

	return &mockRow{}
}

// mockRow scans the given values into the destinations, in order
type mockRow struct {
	err    error
	values []any
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	return assign(r.values, dest)
}

type mockRows struct {
	pgx.Rows

	rows [][]any
	pos  int
}

func (r *mockRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}

	r.pos++

	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return assign(r.rows[r.pos-1], dest)
}

func (r *mockRows) Err() error { return nil }

func (r *mockRows) Close() {}

func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("expected %d destinations, got %d", len(values), len(dest))
	}

	for i, v := range values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *pgtype.Timestamptz:
			*d = v.(pgtype.Timestamptz)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}

	return nil
}

func TestStorage_SaveSimulation(t *testing.T) {
	t.Parallel()

	t.Run("insert error", func(t *testing.T) {
		t.Parallel()

		s := NewStorage(&mockQuerier{
			queryRowFn: func(context.Context, string, ...any) pgx.Row {
				return &mockRow{err: errors.New("boom")}
			},
		})

		assert.Error(t, s.SaveSimulation(context.Background(), &types.SimulationRecord{}))
	})

	t.Run("valid insert", func(t *testing.T) {
		t.Parallel()

		var (
			capturedArgs []any
			created      = time.Date(2026, time.May, 22, 19, 21, 49, 0, time.UTC)
			rate         = 0.05

			record = &types.SimulationRecord{
				CPF:       "111.111.111-11",
				QueriedAt: created,
				OriginalOffers: []*types.RawQuote{
					{MonthlyRate: &rate, InstitutionName: "Banco PingApp"},
				},
				RankedOffers: []*types.Offer{
					{InstitutionName: "Banco PingApp", InstallmentCount: 12},
				},
			}
		)

		s := NewStorage(&mockQuerier{
			queryRowFn: func(_ context.Context, _ string, args ...any) pgx.Row {
				capturedArgs = args

				return &mockRow{
					values: []any{
						int64(7),
						timeToTimestampz(created),
						timeToTimestampz(created),
					},
				}
			},
		})

		require.NoError(t, s.SaveSimulation(context.Background(), record))

		assert.Equal(t, int64(7), record.ID)
		assert.Equal(t, created, record.CreatedAt)

		require.Len(t, capturedArgs, 4)
		assert.Equal(t, "111.111.111-11", capturedArgs[0])
		assert.JSONEq(
			t,
			`[{"jurosMes":0.05,"instituicaoFinanceira":"Banco PingApp"}]`,
			string(capturedArgs[1].([]byte)),
		)
	})
}

func TestStorage_LatestSimulations(t *testing.T) {
	t.Parallel()

	t.Run("query error", func(t *testing.T) {
		t.Parallel()

		s := NewStorage(&mockQuerier{
			queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
				return nil, errors.New("boom")
			},
		})

		_, err := s.LatestSimulations(context.Background(), 50)
		assert.Error(t, err)
	})

	t.Run("parses rows", func(t *testing.T) {
		t.Parallel()

		var (
			capturedLimit any
			at            = time.Date(2026, time.May, 22, 19, 21, 49, 0, time.UTC)
		)

		s := NewStorage(&mockQuerier{
			queryFn: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
				capturedLimit = args[0]

				return &mockRows{
					rows: [][]any{
						{
							int64(2),
							"222.222.222-22",
							[]byte(`[{"valorMin":1000}]`),
							[]byte(`[{"instituicaoFinanceira":"Banco B","qntParcelas":12}]`),
							timeToTimestampz(at),
							timeToTimestampz(at),
							timeToTimestampz(at),
						},
						{
							int64(1),
							"111.111.111-11",
							[]byte(`[]`),
							[]byte(`[]`),
							timeToTimestampz(at),
							timeToTimestampz(at),
							timeToTimestampz(at),
						},
					},
				}, nil
			},
		})

		records, err := s.LatestSimulations(context.Background(), 50)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, 50, capturedLimit)

		assert.Equal(t, int64(2), records[0].ID)
		require.Len(t, records[0].OriginalOffers, 1)
		require.NotNil(t, records[0].OriginalOffers[0].MinAmount)
		assert.Equal(t, 1000.0, *records[0].OriginalOffers[0].MinAmount)

		require.Len(t, records[0].RankedOffers, 1)
		assert.Equal(t, "Banco B", records[0].RankedOffers[0].InstitutionName)
		assert.Equal(t, 12, records[0].RankedOffers[0].InstallmentCount)
		assert.Equal(t, at, records[0].QueriedAt)

		assert.Equal(t, int64(1), records[1].ID)
		assert.Empty(t, records[1].OriginalOffers)
	})

	t.Run("non-positive limit is unbounded", func(t *testing.T) {
		t.Parallel()

		for _, limit := range []int{0, -1} {
			var (
				called        bool
				capturedLimit any = limit
			)

			s := NewStorage(&mockQuerier{
				queryFn: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
					called = true
					capturedLimit = args[0]

					return &mockRows{}, nil
				},
			})

			records, err := s.LatestSimulations(context.Background(), limit)
			require.NoError(t, err)

			assert.True(t, called)
			assert.Nil(t, capturedLimit)
			assert.Empty(t, records)
		}
	})

	t.Run("corrupt JSON", func(t *testing.T) {
		t.Parallel()

		s := NewStorage(&mockQuerier{
			queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{
					rows: [][]any{{
						int64(1),
						"111.111.111-11",
						[]byte(`{not json`),
						[]byte(`[]`),
						pgtype.Timestamptz{},
						pgtype.Timestamptz{},
						pgtype.Timestamptz{},
					}},
				}, nil
			},
		})

		_, err := s.LatestSimulations(context.Background(), 50)
		assert.Error(t, err)
	})
}
