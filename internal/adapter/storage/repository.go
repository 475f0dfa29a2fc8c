package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/jmoiron/sqlx"
)

// tsLayout is fixed width so stored timestamps sort lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

// Repository reads and writes readings and cluster snapshots.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open database. Call Migrate first.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertReadings stores one row per reading and pollutant, missing values as
// NULL. Re-inserting the same city, hour and pollutant overwrites the value, so
// a redelivered batch is idempotent.
func (r *Repository) InsertReadings(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert readings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO readings (city, ts, pollutant, value) VALUES (?, ?, ?, ?)
		ON CONFLICT (city, ts, pollutant) DO UPDATE SET value = excluded.value`))
	if err != nil {
		return fmt.Errorf("prepare insert readings: %w", err)
	}
	defer stmt.Close()

	for _, rd := range readings {
		ts := formatTS(rd.Time)
		for p, v := range rd.Values {
			var value sql.NullFloat64
			if v != nil {
				value = sql.NullFloat64{Float64: *v, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, rd.City, ts, string(p), value); err != nil {
				return fmt.Errorf("insert reading %s %s %s: %w", rd.City, ts, p, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert readings: %w", err)
	}
	return nil
}

type readingRow struct {
	City      string          `db:"city"`
	TS        string          `db:"ts"`
	Pollutant string          `db:"pollutant"`
	Value     sql.NullFloat64 `db:"value"`
}

// LoadReadings returns every stored reading ordered by city and time.
// Pollutants this service does not know are skipped.
func (r *Repository) LoadReadings(ctx context.Context) ([]domain.Reading, error) {
	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT city, ts, pollutant, value FROM readings ORDER BY city, ts, pollutant`); err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	var out []domain.Reading
	for _, row := range rows {
		p := domain.Pollutant(row.Pollutant)
		if !domain.IsKnownPollutant(p) {
			continue
		}
		n := len(out)
		if n == 0 || out[n-1].City != row.City || formatTS(out[n-1].Time) != row.TS {
			ts, err := parseTS(row.TS)
			if err != nil {
				return nil, fmt.Errorf("load readings: %s: %w", row.City, err)
			}
			out = append(out, domain.Reading{City: row.City, Time: ts, Values: make(map[domain.Pollutant]*float64)})
			n++
		}
		if row.Value.Valid {
			out[n-1].Values[p] = domain.Float(row.Value.Float64)
		} else {
			out[n-1].Values[p] = nil
		}
	}
	return out, nil
}

// SaveSnapshot stores a cluster run and its assignments in one transaction.
// Saving a run id that already exists replaces it.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *domain.ClusterSnapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cluster_assignments WHERE run_id = ?`), snap.RunID); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.RunID, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cluster_runs WHERE run_id = ?`), snap.RunID); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.RunID, err)
	}

	pollutants := make([]string, len(snap.Pollutants))
	for i, p := range snap.Pollutants {
		pollutants[i] = string(p)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO cluster_runs (run_id, generated_at, seed, inertia, pollutants) VALUES (?, ?, ?, ?, ?)`),
		snap.RunID, formatTS(snap.GeneratedAt), strconv.FormatUint(snap.Seed, 10), snap.Inertia, strings.Join(pollutants, ","),
	); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.RunID, err)
	}

	insert := tx.Rebind(`
		INSERT INTO cluster_assignments (run_id, city, tier, rank, distance, level) VALUES (?, ?, ?, ?, ?, ?)`)
	for city, a := range snap.Assignments {
		if _, err := tx.ExecContext(ctx, insert, snap.RunID, city, a.Tier.String(), a.Rank, a.Distance, a.Level); err != nil {
			return fmt.Errorf("save assignment %s/%s: %w", snap.RunID, city, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.RunID, err)
	}
	return nil
}

type runRow struct {
	RunID       string  `db:"run_id"`
	GeneratedAt string  `db:"generated_at"`
	Seed        string  `db:"seed"`
	Inertia     float64 `db:"inertia"`
	Pollutants  string  `db:"pollutants"`
}

type assignmentRow struct {
	City     string  `db:"city"`
	Tier     string  `db:"tier"`
	Rank     int     `db:"rank"`
	Distance float64 `db:"distance"`
	Level    float64 `db:"level"`
}

// LatestSnapshot returns the most recently generated snapshot, or nil if no
// run has been saved.
func (r *Repository) LatestSnapshot(ctx context.Context) (*domain.ClusterSnapshot, error) {
	var run runRow
	err := r.db.GetContext(ctx, &run, `
		SELECT run_id, generated_at, seed, inertia, pollutants
		FROM cluster_runs ORDER BY generated_at DESC, run_id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	var rows []assignmentRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT city, tier, rank, distance, level FROM cluster_assignments WHERE run_id = ?`), run.RunID); err != nil {
		return nil, fmt.Errorf("load assignments %s: %w", run.RunID, err)
	}
	return run.toSnapshot(rows)
}

func (run runRow) toSnapshot(rows []assignmentRow) (*domain.ClusterSnapshot, error) {
	generated, err := parseTS(run.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", run.RunID, err)
	}
	seed, err := strconv.ParseUint(run.Seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: seed: %w", run.RunID, err)
	}
	snap := &domain.ClusterSnapshot{
		RunID:       run.RunID,
		GeneratedAt: generated,
		Seed:        seed,
		Inertia:     run.Inertia,
		Assignments: make(map[string]domain.ClusterAssignment, len(rows)),
	}
	if run.Pollutants != "" {
		for _, p := range strings.Split(run.Pollutants, ",") {
			snap.Pollutants = append(snap.Pollutants, domain.Pollutant(p))
		}
	}
	for _, row := range rows {
		tier, err := domain.ParseTier(row.Tier)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: city %s: %w", run.RunID, row.City, err)
		}
		snap.Assignments[row.City] = domain.ClusterAssignment{
			City:     row.City,
			Tier:     tier,
			Rank:     row.Rank,
			Distance: row.Distance,
			Level:    row.Level,
		}
	}
	return snap, nil
}
