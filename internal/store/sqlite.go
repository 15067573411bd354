package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/uplift-labs/uplift/internal/models"
)

// SQLiteStore persists the engine state in a single embedded database file.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    type TEXT NOT NULL,
    primary_metric TEXT NOT NULL,
    secondary_metrics TEXT,
    variants TEXT NOT NULL,
    config TEXT NOT NULL,
    results TEXT,
    created_at INTEGER NOT NULL,
    started_at INTEGER,
    completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);

CREATE TABLE IF NOT EXISTS assignments (
    user_id TEXT NOT NULL,
    experiment_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    assigned_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, experiment_id)
);

CREATE TABLE IF NOT EXISTS conversion_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    value REAL NOT NULL DEFAULT 0,
    user_id TEXT NOT NULL,
    session_id TEXT,
    ts INTEGER NOT NULL,
    page TEXT,
    experiment_id TEXT,
    variant_id TEXT,
    attributes TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_experiment ON conversion_events(experiment_id);
CREATE INDEX IF NOT EXISTS idx_events_user ON conversion_events(user_id);

CREATE TABLE IF NOT EXISTS variant_stats (
    experiment_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    impressions INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    revenue REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (experiment_id, variant_id)
);

CREATE TABLE IF NOT EXISTS segments (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *models.Experiment) error {
	variantsJSON, err := json.Marshal(exp.Variants)
	if err != nil {
		return errors.Wrap(err, "failed to marshal variants")
	}
	configJSON, err := json.Marshal(exp.Config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	metricsJSON, err := json.Marshal(exp.SecondaryMetrics)
	if err != nil {
		return errors.Wrap(err, "failed to marshal secondary metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (id, name, status, type, primary_metric, secondary_metrics, variants, config, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Name, string(exp.Status), string(exp.Type), exp.PrimaryMetric,
		string(metricsJSON), string(variantsJSON), string(configJSON), exp.CreatedAt.Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert experiment")
	}
	return nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, type, primary_metric, secondary_metrics, variants, config, results, created_at, started_at, completed_at
		 FROM experiments WHERE id = ?`, id)
	return scanExperiment(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*models.Experiment, error) {
	var (
		exp         models.Experiment
		status      string
		expType     string
		metricsJSON sql.NullString
		variantsRaw string
		configRaw   string
		resultsRaw  sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
	)
	err := row.Scan(&exp.ID, &exp.Name, &status, &expType, &exp.PrimaryMetric,
		&metricsJSON, &variantsRaw, &configRaw, &resultsRaw, &createdAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan experiment")
	}

	exp.Status = models.ExperimentStatus(status)
	exp.Type = models.ExperimentType(expType)
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &exp.SecondaryMetrics); err != nil {
			return nil, errors.Wrap(err, "failed to decode secondary metrics")
		}
	}
	if err := json.Unmarshal([]byte(variantsRaw), &exp.Variants); err != nil {
		return nil, errors.Wrap(err, "failed to decode variants")
	}
	if err := json.Unmarshal([]byte(configRaw), &exp.Config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if resultsRaw.Valid && resultsRaw.String != "" {
		exp.Results = &models.ExperimentResults{}
		if err := json.Unmarshal([]byte(resultsRaw.String), exp.Results); err != nil {
			return nil, errors.Wrap(err, "failed to decode results")
		}
	}
	exp.CreatedAt = time.Unix(createdAt, 0)
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0)
		exp.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		exp.CompletedAt = &t
	}
	return &exp, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, type, primary_metric, secondary_metrics, variants, config, results, created_at, started_at, completed_at
		 FROM experiments ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query experiments")
	}
	defer rows.Close()

	var out []*models.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateExperimentStatus(ctx context.Context, id string, status models.ExperimentStatus) error {
	now := time.Now().Unix()
	var query string
	switch status {
	case models.StatusRunning:
		query = `UPDATE experiments SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`
	case models.StatusCompleted, models.StatusArchived:
		query = `UPDATE experiments SET status = ?, completed_at = ? WHERE id = ?`
	default:
		res, err := s.db.ExecContext(ctx, `UPDATE experiments SET status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return errors.Wrap(err, "failed to update status")
		}
		return requireRow(res)
	}
	res, err := s.db.ExecContext(ctx, query, string(status), now, id)
	if err != nil {
		return errors.Wrap(err, "failed to update status")
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveResults(ctx context.Context, id string, results *models.ExperimentResults) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE experiments SET results = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return errors.Wrap(err, "failed to save results")
	}
	return requireRow(res)
}

// PutAssignment inserts the assignment unless one already exists for the
// (user, experiment) pair; the primary key makes the first write win even
// across processes. The stored row is returned either way.
func (s *SQLiteStore) PutAssignment(ctx context.Context, a models.Assignment) (models.Assignment, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (user_id, experiment_id, variant_id, assigned_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, experiment_id) DO NOTHING`,
		a.UserID, a.ExperimentID, a.VariantID, a.AssignedAt.Unix(),
	)
	if err != nil {
		return models.Assignment{}, false, errors.Wrap(err, "failed to insert assignment")
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.Assignment{}, false, errors.Wrap(err, "failed to read affected rows")
	}

	stored, err := s.GetAssignment(ctx, a.UserID, a.ExperimentID)
	if err != nil {
		return models.Assignment{}, false, err
	}
	return *stored, inserted == 1, nil
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, userID, experimentID string) (*models.Assignment, error) {
	var (
		a          models.Assignment
		assignedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, experiment_id, variant_id, assigned_at FROM assignments
		 WHERE user_id = ? AND experiment_id = ?`, userID, experimentID,
	).Scan(&a.UserID, &a.ExperimentID, &a.VariantID, &assignedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query assignment")
	}
	a.AssignedAt = time.Unix(assignedAt, 0)
	return &a, nil
}

func (s *SQLiteStore) AppendConversionEvent(ctx context.Context, ev models.ConversionEvent) error {
	var attrs []byte
	if len(ev.Attributes) > 0 {
		var err error
		attrs, err = json.Marshal(ev.Attributes)
		if err != nil {
			return errors.Wrap(err, "failed to marshal attributes")
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversion_events (id, type, value, user_id, session_id, ts, page, experiment_id, variant_id, attributes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.Value, ev.UserID, ev.SessionID, ev.Timestamp.Unix(),
		ev.Page, ev.ExperimentID, ev.VariantID, nullableString(attrs),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert conversion event")
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (s *SQLiteStore) ListConversionEvents(ctx context.Context, experimentID string) ([]models.ConversionEvent, error) {
	query := `SELECT id, type, value, user_id, session_id, ts, page, experiment_id, variant_id, attributes
		 FROM conversion_events`
	args := []any{}
	if experimentID != "" {
		query += ` WHERE experiment_id = ?`
		args = append(args, experimentID)
	}
	query += ` ORDER BY ts`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query conversion events")
	}
	defer rows.Close()

	var out []models.ConversionEvent
	for rows.Next() {
		var (
			ev        models.ConversionEvent
			sessionID sql.NullString
			ts        int64
			page      sql.NullString
			expID     sql.NullString
			variantID sql.NullString
			attrs     sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Value, &ev.UserID, &sessionID, &ts,
			&page, &expID, &variantID, &attrs); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversion event")
		}
		ev.SessionID = sessionID.String
		ev.Timestamp = time.Unix(ts, 0)
		ev.Page = page.String
		ev.ExperimentID = expID.String
		ev.VariantID = variantID.String
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &ev.Attributes); err != nil {
				return nil, errors.Wrap(err, "failed to decode attributes")
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecordImpression(ctx context.Context, experimentID, variantID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variant_stats (experiment_id, variant_id, impressions)
		 VALUES (?, ?, 1)
		 ON CONFLICT (experiment_id, variant_id) DO UPDATE SET impressions = impressions + 1`,
		experimentID, variantID,
	)
	return errors.Wrap(err, "failed to record impression")
}

func (s *SQLiteStore) RecordConversion(ctx context.Context, experimentID, variantID string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variant_stats (experiment_id, variant_id, conversions, revenue)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (experiment_id, variant_id) DO UPDATE SET conversions = conversions + 1, revenue = revenue + excluded.revenue`,
		experimentID, variantID, value,
	)
	return errors.Wrap(err, "failed to record conversion")
}

func (s *SQLiteStore) ReadAggregates(ctx context.Context, experimentID string) ([]models.VariantStats, error) {
	exp, err := s.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT variant_id, impressions, conversions, revenue FROM variant_stats WHERE experiment_id = ?`,
		experimentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query variant stats")
	}
	defer rows.Close()

	byVariant := make(map[string]models.VariantStats)
	for rows.Next() {
		var stats models.VariantStats
		if err := rows.Scan(&stats.VariantID, &stats.Impressions, &stats.Conversions, &stats.Revenue); err != nil {
			return nil, errors.Wrap(err, "failed to scan variant stats")
		}
		byVariant[stats.VariantID] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// One row per declared variant, in declaration order.
	out := make([]models.VariantStats, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		stats := byVariant[v.ID]
		stats.VariantID = v.ID
		if stats.Impressions > 0 {
			stats.ConversionRate = float64(stats.Conversions) / float64(stats.Impressions)
			stats.RevenuePerVisitor = stats.Revenue / float64(stats.Impressions)
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *SQLiteStore) SaveSegment(ctx context.Context, seg *models.UserSegment) error {
	raw, err := json.Marshal(seg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal segment")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO segments (id, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		seg.ID, string(raw), seg.CreatedAt.Unix(),
	)
	return errors.Wrap(err, "failed to save segment")
}

func (s *SQLiteStore) ListSegments(ctx context.Context) ([]*models.UserSegment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM segments ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query segments")
	}
	defer rows.Close()

	var out []*models.UserSegment
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan segment")
		}
		seg := &models.UserSegment{}
		if err := json.Unmarshal([]byte(raw), seg); err != nil {
			return nil, errors.Wrap(err, "failed to decode segment")
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveRule(ctx context.Context, rule *models.PersonalizationRule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return errors.Wrap(err, "failed to marshal rule")
	}
	enabled := 0
	if rule.Enabled {
		enabled = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (id, data, priority, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, priority = excluded.priority, enabled = excluded.enabled`,
		rule.ID, string(raw), rule.Priority, enabled,
	)
	return errors.Wrap(err, "failed to save rule")
}

func (s *SQLiteStore) ListRules(ctx context.Context) ([]*models.PersonalizationRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM rules ORDER BY priority DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query rules")
	}
	defer rows.Close()

	var out []*models.PersonalizationRule
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan rule")
		}
		rule := &models.PersonalizationRule{}
		if err := json.Unmarshal([]byte(raw), rule); err != nil {
			return nil, errors.Wrap(err, "failed to decode rule")
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DisableRule(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT data FROM rules WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to query rule")
	}
	rule := &models.PersonalizationRule{}
	if err := json.Unmarshal([]byte(raw), rule); err != nil {
		return errors.Wrap(err, "failed to decode rule")
	}
	rule.Enabled = false
	updated, err := json.Marshal(rule)
	if err != nil {
		return errors.Wrap(err, "failed to marshal rule")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rules SET data = ?, enabled = 0 WHERE id = ?`, string(updated), id); err != nil {
		return errors.Wrap(err, "failed to update rule")
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}
