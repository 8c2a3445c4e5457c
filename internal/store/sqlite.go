package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	sources    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enriched_points (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	source    TEXT NOT NULL,
	source_id TEXT NOT NULL,
	lon       REAL NOT NULL,
	lat       REAL NOT NULL,
	huc12     TEXT NOT NULL DEFAULT '',
	elevation REAL NOT NULL DEFAULT 0,
	data      TEXT NOT NULL,
	PRIMARY KEY (run_id, source, source_id)
);

CREATE TABLE IF NOT EXISTS elevation_batches (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	source      TEXT NOT NULL,
	batch_index INTEGER NOT NULL,
	start_idx   INTEGER NOT NULL,
	end_idx     INTEGER NOT NULL,
	unit        TEXT NOT NULL DEFAULT '',
	elevations  TEXT NOT NULL,
	PRIMARY KEY (run_id, source, batch_index)
);

CREATE TABLE IF NOT EXISTS links (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	ordinal        INTEGER NOT NULL,
	source_label   TEXT NOT NULL,
	target_key     TEXT NOT NULL,
	source_key     TEXT NOT NULL,
	population     REAL NOT NULL DEFAULT 0,
	has_population INTEGER NOT NULL DEFAULT 0,
	confident      INTEGER NOT NULL DEFAULT 0,
	data           TEXT NOT NULL,
	PRIMARY KEY (run_id, ordinal)
);

CREATE TABLE IF NOT EXISTS summary_rows (
	run_id               TEXT NOT NULL REFERENCES runs(id),
	label                TEXT NOT NULL,
	count                INTEGER NOT NULL,
	pct                  REAL NOT NULL,
	population           REAL NOT NULL,
	active_count         INTEGER NOT NULL,
	active_pct           REAL NOT NULL,
	active_population    REAL NOT NULL,
	confident_count      INTEGER NOT NULL,
	confident_pct        REAL NOT NULL,
	confident_population REAL NOT NULL,
	PRIMARY KEY (run_id, label)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_enriched_points_huc12 ON enriched_points(huc12);
CREATE INDEX IF NOT EXISTS idx_links_source_label ON links(run_id, source_label);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, sources []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, sources, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(sourcesJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusQueued,
		Sources:   sources,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sources, status, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row.Scan)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, sources, status, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveEnrichedPoints(ctx context.Context, runID, source string, points []model.EnrichedPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enriched_points (run_id, source, source_id, lon, lat, huc12, elevation, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, source, source_id) DO UPDATE SET
			lon = excluded.lon, lat = excluded.lat, huc12 = excluded.huc12,
			elevation = excluded.elevation, data = excluded.data`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert points")
	}
	defer stmt.Close()

	for _, p := range points {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal point %s", p.ID)
		}
		if _, err := stmt.ExecContext(ctx, runID, source, p.ID, p.Lon, p.Lat, p.HUC12, p.Elevation, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert point %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit points")
}

func (s *SQLiteStore) EnrichedPoints(ctx context.Context, runID, source string) ([]model.EnrichedPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM enriched_points WHERE run_id = ? AND source = ? ORDER BY source_id`,
		runID, source,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query points")
	}
	defer rows.Close()

	var points []model.EnrichedPoint
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		var p model.EnrichedPoint
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate points")
}

func (s *SQLiteStore) SaveElevationBatch(ctx context.Context, runID, source string, batch model.ElevationBatch) error {
	elevJSON, err := json.Marshal(batch.Elevations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal elevations")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO elevation_batches (run_id, source, batch_index, start_idx, end_idx, unit, elevations)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, source, batch_index) DO UPDATE SET
			start_idx = excluded.start_idx, end_idx = excluded.end_idx,
			unit = excluded.unit, elevations = excluded.elevations`,
		runID, source, batch.Index, batch.Start, batch.End, batch.Unit, string(elevJSON),
	)
	return eris.Wrapf(err, "sqlite: insert elevation batch %d", batch.Index)
}

func (s *SQLiteStore) ElevationBatches(ctx context.Context, runID, source string) ([]model.ElevationBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, start_idx, end_idx, unit, elevations
		 FROM elevation_batches WHERE run_id = ? AND source = ? ORDER BY batch_index`,
		runID, source,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query elevation batches")
	}
	defer rows.Close()

	var batches []model.ElevationBatch
	for rows.Next() {
		var b model.ElevationBatch
		var elevJSON string
		if err := rows.Scan(&b.Index, &b.Start, &b.End, &b.Unit, &elevJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan elevation batch")
		}
		if err := json.Unmarshal([]byte(elevJSON), &b.Elevations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal elevations")
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: iterate elevation batches")
}

func (s *SQLiteStore) SaveLinks(ctx context.Context, runID string, links []model.LinkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	// A rerun replaces the previous link set wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE run_id = ?`, runID); err != nil {
		return eris.Wrap(err, "sqlite: clear links")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO links (run_id, ordinal, source_label, target_key, source_key, population, has_population, confident, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert links")
	}
	defer stmt.Close()

	for i, l := range links {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal link")
		}
		_, err = stmt.ExecContext(ctx,
			runID, i, l.SourceLabel, l.Target.Key(), l.Source.Key(),
			l.Population, boolToInt(l.HasPopulation), boolToInt(l.Confident), string(data),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert link %d", i)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit links")
}

func (s *SQLiteStore) Links(ctx context.Context, runID string) ([]model.LinkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM links WHERE run_id = ? ORDER BY ordinal`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query links")
	}
	defer rows.Close()

	var links []model.LinkRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link")
		}
		var l model.LinkRecord
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal link")
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: iterate links")
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, runID string, summaryRows []model.AggregateRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	for _, r := range summaryRows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO summary_rows (run_id, label, count, pct, population,
				active_count, active_pct, active_population,
				confident_count, confident_pct, confident_population)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, label) DO UPDATE SET
				count = excluded.count, pct = excluded.pct, population = excluded.population,
				active_count = excluded.active_count, active_pct = excluded.active_pct,
				active_population = excluded.active_population,
				confident_count = excluded.confident_count, confident_pct = excluded.confident_pct,
				confident_population = excluded.confident_population`,
			runID, r.Label, r.Count, r.Pct, r.Population,
			r.ActiveCount, r.ActivePct, r.ActivePopulation,
			r.ConfidentCount, r.ConfidentPct, r.ConfidentPopulation,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert summary row %s", r.Label)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit summary")
}

func (s *SQLiteStore) Summary(ctx context.Context, runID string) ([]model.AggregateRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, count, pct, population,
			active_count, active_pct, active_population,
			confident_count, confident_pct, confident_population
		FROM summary_rows WHERE run_id = ? ORDER BY label`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query summary")
	}
	defer rows.Close()

	var out []model.AggregateRow
	for rows.Next() {
		var r model.AggregateRow
		err := rows.Scan(&r.Label, &r.Count, &r.Pct, &r.Population,
			&r.ActiveCount, &r.ActivePct, &r.ActivePopulation,
			&r.ConfidentCount, &r.ConfidentPct, &r.ConfidentPopulation)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate summary")
}

// scanRun decodes one runs row via the given Scan function, shared
// between QueryRow and Rows iteration.
func scanRun(scan func(dest ...any) error) (*model.Run, error) {
	var r model.Run
	var sourcesJSON string
	if err := scan(&r.ID, &sourcesJSON, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &r.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources")
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
