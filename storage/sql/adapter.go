package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sig-0/credsim/storage/types"
)

const (
	saveSimulationQuery = `
INSERT INTO simulations (cpf, ofertas_originais, ofertas_processadas, data_consulta)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`

	latestSimulationsQuery = `
SELECT id, cpf, ofertas_originais, ofertas_processadas, data_consulta, created_at, updated_at
FROM simulations
ORDER BY created_at DESC, id DESC
LIMIT $1`
)

// Querier is the subset of the pgx connection API used by the storage.
// Both *pgx.Conn and *pgxpool.Pool satisfy it
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db Querier
}

func NewStorage(db Querier) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) SaveSimulation(
	ctx context.Context,
	record *types.SimulationRecord,
) error {
	original, err := json.Marshal(record.OriginalOffers)
	if err != nil {
		return fmt.Errorf("unable to marshal original offers: %w", err)
	}

	ranked, err := json.Marshal(record.RankedOffers)
	if err != nil {
		return fmt.Errorf("unable to marshal ranked offers: %w", err)
	}

	var (
		id                   int64
		createdAt, updatedAt pgtype.Timestamptz
	)

	if err = s.db.QueryRow(
		ctx,
		saveSimulationQuery,
		record.CPF,
		original,
		ranked,
		timeToTimestampz(record.QueriedAt),
	).Scan(&id, &createdAt, &updatedAt); err != nil {
		return fmt.Errorf("unable to save simulation: %w", err)
	}

	record.ID = id
	record.CreatedAt = timestampzToTime(createdAt)
	record.UpdatedAt = timestampzToTime(updatedAt)

	return nil
}

func (s *Storage) LatestSimulations(
	ctx context.Context,
	limit int,
) ([]*types.SimulationRecord, error) {
	// LIMIT NULL fetches every row
	var queryLimit any = limit
	if limit <= 0 {
		queryLimit = nil
	}

	rows, err := s.db.Query(ctx, latestSimulationsQuery, queryLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // valid case
		}

		return nil, fmt.Errorf("unable to fetch simulations: %w", err)
	}
	defer rows.Close()

	out := make([]*types.SimulationRecord, 0, max(limit, 0))

	for rows.Next() {
		var (
			record                          types.SimulationRecord
			original, ranked                []byte
			queriedAt, createdAt, updatedAt pgtype.Timestamptz
		)

		if err = rows.Scan(
			&record.ID,
			&record.CPF,
			&original,
			&ranked,
			&queriedAt,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("unable to scan simulation: %w", err)
		}

		if err = json.Unmarshal(original, &record.OriginalOffers); err != nil {
			return nil, fmt.Errorf("unable to parse original offers (id %d): %w", record.ID, err)
		}

		if err = json.Unmarshal(ranked, &record.RankedOffers); err != nil {
			return nil, fmt.Errorf("unable to parse ranked offers (id %d): %w", record.ID, err)
		}

		record.QueriedAt = timestampzToTime(queriedAt)
		record.CreatedAt = timestampzToTime(createdAt)
		record.UpdatedAt = timestampzToTime(updatedAt)

		out = append(out, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate simulations: %w", err)
	}

	return out, nil
}

// timeToTimestampz converts the time value to postgres timestamp
func timeToTimestampz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t.UTC(),
		Valid: true,
	}
}

// timestampzToTime converts the postgres timestamp value to time
func timestampzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}

	return ts.Time.UTC()
}
