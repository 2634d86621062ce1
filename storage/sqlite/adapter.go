// Package sqlite implements the simulation storage on an embedded SQLite file,
// for single-node deployments that do not run Postgres
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/sig-0/credsim/storage/types"
)

//go:embed schema.sql
var schema string

type Storage struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
// Use ":memory:" for a throwaway database
func Open(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// SQLite allows a single writer, and every
	// in-memory connection is its own database
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to apply sqlite schema: %w", err)
	}

	return &Storage{
		db: db,
	}, nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveSimulation(ctx context.Context, record *types.SimulationRecord) error {
	original, err := json.Marshal(record.OriginalOffers)
	if err != nil {
		return fmt.Errorf("unable to marshal original offers: %w", err)
	}

	ranked, err := json.Marshal(record.RankedOffers)
	if err != nil {
		return fmt.Errorf("unable to marshal ranked offers: %w", err)
	}

	now := time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO simulations
		(cpf, ofertas_originais, ofertas_processadas, data_consulta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.CPF,
		string(original),
		string(ranked),
		formatTime(record.QueriedAt),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("unable to save simulation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("unable to fetch simulation ID: %w", err)
	}

	record.ID = id
	record.CreatedAt = now
	record.UpdatedAt = now

	return nil
}

func (s *Storage) LatestSimulations(ctx context.Context, limit int) ([]*types.SimulationRecord, error) {
	// SQLite reads a negative LIMIT as no limit
	queryLimit := limit
	if limit <= 0 {
		queryLimit = -1
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, cpf, ofertas_originais, ofertas_processadas, data_consulta, created_at, updated_at
		FROM simulations
		ORDER BY id DESC
		LIMIT ?`,
		queryLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch simulations: %w", err)
	}
	defer rows.Close()

	out := make([]*types.SimulationRecord, 0, max(limit, 0))

	for rows.Next() {
		var (
			record                          types.SimulationRecord
			original, ranked                string
			queriedAt, createdAt, updatedAt string
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

		if err = json.Unmarshal([]byte(original), &record.OriginalOffers); err != nil {
			return nil, fmt.Errorf("unable to parse original offers (id %d): %w", record.ID, err)
		}

		if err = json.Unmarshal([]byte(ranked), &record.RankedOffers); err != nil {
			return nil, fmt.Errorf("unable to parse ranked offers (id %d): %w", record.ID, err)
		}

		record.QueriedAt = parseTime(queriedAt)
		record.CreatedAt = parseTime(createdAt)
		record.UpdatedAt = parseTime(updatedAt)

		out = append(out, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate simulations: %w", err)
	}

	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t.UTC()
}
