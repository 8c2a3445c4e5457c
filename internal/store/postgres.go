package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/carceral-ecologies/pfas-cli/internal/db"
	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Point rows carry an
// EWKB geometry column (SRID 4326) so results load straight into
// PostGIS or QGIS for mapping.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	sources    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enriched_points (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	source    TEXT NOT NULL,
	source_id TEXT NOT NULL,
	lon       DOUBLE PRECISION NOT NULL,
	lat       DOUBLE PRECISION NOT NULL,
	geom      BYTEA,
	huc12     TEXT NOT NULL DEFAULT '',
	elevation DOUBLE PRECISION NOT NULL DEFAULT 0,
	data      JSONB NOT NULL,
	PRIMARY KEY (run_id, source, source_id)
);

CREATE TABLE IF NOT EXISTS elevation_batches (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	source      TEXT NOT NULL,
	batch_index INTEGER NOT NULL,
	start_idx   INTEGER NOT NULL,
	end_idx     INTEGER NOT NULL,
	unit        TEXT NOT NULL DEFAULT '',
	elevations  JSONB NOT NULL,
	PRIMARY KEY (run_id, source, batch_index)
);

CREATE TABLE IF NOT EXISTS links (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	ordinal        INTEGER NOT NULL,
	source_label   TEXT NOT NULL,
	target_key     TEXT NOT NULL,
	source_key     TEXT NOT NULL,
	population     DOUBLE PRECISION NOT NULL DEFAULT 0,
	has_population BOOLEAN NOT NULL DEFAULT false,
	confident      BOOLEAN NOT NULL DEFAULT false,
	data           JSONB NOT NULL,
	PRIMARY KEY (run_id, ordinal)
);

CREATE TABLE IF NOT EXISTS summary_rows (
	run_id               TEXT NOT NULL REFERENCES runs(id),
	label                TEXT NOT NULL,
	count                INTEGER NOT NULL,
	pct                  DOUBLE PRECISION NOT NULL,
	population           DOUBLE PRECISION NOT NULL,
	active_count         INTEGER NOT NULL,
	active_pct           DOUBLE PRECISION NOT NULL,
	active_population    DOUBLE PRECISION NOT NULL,
	confident_count      INTEGER NOT NULL,
	confident_pct        DOUBLE PRECISION NOT NULL,
	confident_population DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, label)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_enriched_points_huc12 ON enriched_points(huc12);
CREATE INDEX IF NOT EXISTS idx_links_source_label ON links(run_id, source_label);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, sources []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, sources, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, sourcesJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusQueued,
		Sources:   sources,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var sourcesJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, sources, status, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &sourcesJSON, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sources")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, sources, status, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var sourcesJSON []byte
		if err := rows.Scan(&r.ID, &sourcesJSON, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var enrichedPointColumns = []string{
	"run_id", "source", "source_id", "lon", "lat", "geom", "huc12", "elevation", "data",
}

func (s *PostgresStore) SaveEnrichedPoints(ctx context.Context, runID, source string, points []model.EnrichedPoint) error {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal point %s", p.ID)
		}
		geomWKB, err := encodePointEWKB(p.Lon, p.Lat)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode point %s", p.ID)
		}
		rows = append(rows, []any{runID, source, p.ID, p.Lon, p.Lat, geomWKB, p.HUC12, p.Elevation, data})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "enriched_points",
		Columns:      enrichedPointColumns,
		ConflictKeys: []string{"run_id", "source", "source_id"},
	}, rows)
	return err
}

func (s *PostgresStore) EnrichedPoints(ctx context.Context, runID, source string) ([]model.EnrichedPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM enriched_points WHERE run_id = $1 AND source = $2 ORDER BY source_id`,
		runID, source,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query points")
	}
	defer rows.Close()

	var points []model.EnrichedPoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		var p model.EnrichedPoint
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate points")
}

func (s *PostgresStore) SaveElevationBatch(ctx context.Context, runID, source string, batch model.ElevationBatch) error {
	elevJSON, err := json.Marshal(batch.Elevations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal elevations")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO elevation_batches (run_id, source, batch_index, start_idx, end_idx, unit, elevations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, source, batch_index) DO UPDATE SET
			start_idx = EXCLUDED.start_idx, end_idx = EXCLUDED.end_idx,
			unit = EXCLUDED.unit, elevations = EXCLUDED.elevations`,
		runID, source, batch.Index, batch.Start, batch.End, batch.Unit, elevJSON,
	)
	return eris.Wrapf(err, "postgres: insert elevation batch %d", batch.Index)
}

func (s *PostgresStore) ElevationBatches(ctx context.Context, runID, source string) ([]model.ElevationBatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT batch_index, start_idx, end_idx, unit, elevations
		 FROM elevation_batches WHERE run_id = $1 AND source = $2 ORDER BY batch_index`,
		runID, source,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query elevation batches")
	}
	defer rows.Close()

	var batches []model.ElevationBatch
	for rows.Next() {
		var b model.ElevationBatch
		var elevJSON []byte
		if err := rows.Scan(&b.Index, &b.Start, &b.End, &b.Unit, &elevJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan elevation batch")
		}
		if err := json.Unmarshal(elevJSON, &b.Elevations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal elevations")
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: iterate elevation batches")
}

var linkColumns = []string{
	"run_id", "ordinal", "source_label", "target_key", "source_key",
	"population", "has_population", "confident", "data",
}

func (s *PostgresStore) SaveLinks(ctx context.Context, runID string, links []model.LinkRecord) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM links WHERE run_id = $1`, runID); err != nil {
		return eris.Wrap(err, "postgres: clear links")
	}

	rows := make([][]any, 0, len(links))
	for i, l := range links {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal link")
		}
		rows = append(rows, []any{
			runID, i, l.SourceLabel, l.Target.Key(), l.Source.Key(),
			l.Population, l.HasPopulation, l.Confident, data,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "links", linkColumns, rows)
	return err
}

func (s *PostgresStore) Links(ctx context.Context, runID string) ([]model.LinkRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM links WHERE run_id = $1 ORDER BY ordinal`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query links")
	}
	defer rows.Close()

	var links []model.LinkRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link")
		}
		var l model.LinkRecord
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal link")
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "postgres: iterate links")
}

var summaryColumns = []string{
	"run_id", "label", "count", "pct", "population",
	"active_count", "active_pct", "active_population",
	"confident_count", "confident_pct", "confident_population",
}

func (s *PostgresStore) SaveSummary(ctx context.Context, runID string, summaryRows []model.AggregateRow) error {
	rows := make([][]any, 0, len(summaryRows))
	for _, r := range summaryRows {
		rows = append(rows, []any{
			runID, r.Label, r.Count, r.Pct, r.Population,
			r.ActiveCount, r.ActivePct, r.ActivePopulation,
			r.ConfidentCount, r.ConfidentPct, r.ConfidentPopulation,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "summary_rows",
		Columns:      summaryColumns,
		ConflictKeys: []string{"run_id", "label"},
	}, rows)
	return err
}

func (s *PostgresStore) Summary(ctx context.Context, runID string) ([]model.AggregateRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT label, count, pct, population,
			active_count, active_pct, active_population,
			confident_count, confident_pct, confident_population
		FROM summary_rows WHERE run_id = $1 ORDER BY label`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query summary")
	}
	defer rows.Close()

	var out []model.AggregateRow
	for rows.Next() {
		var r model.AggregateRow
		err := rows.Scan(&r.Label, &r.Count, &r.Pct, &r.Population,
			&r.ActiveCount, &r.ActivePct, &r.ActivePopulation,
			&r.ConfidentCount, &r.ConfidentPct, &r.ConfidentPopulation)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate summary")
}

// encodePointEWKB encodes a lon/lat pair as EWKB with SRID 4326.
func encodePointEWKB(lon, lat float64) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode EWKB")
	}
	return data, nil
}
