// Package triallog persists optimization trial history. Trials can be
// appended to a JSONL file next to the study, to a SQL trial store, or both.
package triallog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/schema"
)

// Table names for trial tracking.
const (
	studiesTable = "scorefuse_studies"
	trialsTable  = "scorefuse_trials"
)

// TrialStore persists studies and their trials in a SQL database.
// A store created with NoneBackend discards everything silently.
type TrialStore struct {
	db         *sql.DB
	backend    schema.DatabaseBackend
	driverName string
}

// NewTrialStore creates a new TrialStore with the specified backend.
func NewTrialStore(backend schema.DatabaseBackend, connStr string) (*TrialStore, error) {
	var db *sql.DB
	var err error
	var driverName string

	switch backend {
	case schema.SQLiteBackend:
		driverName = "sqlite"
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetStudyDBFilePath()
		}
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		driverName = "mysql"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		driverName = "pgx"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=...", err)
		}

	case schema.NoneBackend:
		// Return a no-op store for disabled tracking
		return &TrialStore{db: nil, backend: backend, driverName: ""}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported store backend %s", schema.ErrConfig, backend)
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w. Verify the database server is running and accessible", backend, err)
	}

	// Create the table schemas
	if err := createTrialTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create trial tables: %w", err)
	}

	return &TrialStore{db: db, backend: backend, driverName: driverName}, nil
}

// Backend returns the configured database backend.
func (ts *TrialStore) Backend() schema.DatabaseBackend {
	return ts.backend
}

// createTrialTables creates the study and trial tracking tables.
func createTrialTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{studiesTable, getCreateStudiesQuery(backend)},
		{trialsTable, getCreateTrialsQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}

	return nil
}

// getCreateStudiesQuery returns the CREATE TABLE query for scorefuse_studies.
func getCreateStudiesQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(studiesTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				study_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				study_name VARCHAR(255) NOT NULL,
				direction VARCHAR(16) NOT NULL,
				config_params TEXT,
				created_at DATETIME(6) NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				study_id BIGSERIAL PRIMARY KEY,
				study_name TEXT NOT NULL,
				direction TEXT NOT NULL,
				config_params TEXT,
				created_at TIMESTAMPTZ NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				study_id INTEGER PRIMARY KEY AUTOINCREMENT,
				study_name TEXT NOT NULL,
				direction TEXT NOT NULL,
				config_params TEXT,
				created_at TEXT NOT NULL
			);
		`, quotedTableName)
	}
}

// getCreateTrialsQuery returns the CREATE TABLE query for scorefuse_trials.
func getCreateTrialsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(trialsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				study_id BIGINT NOT NULL,
				trial_number INT NOT NULL,
				state VARCHAR(16) NOT NULL,
				params TEXT NOT NULL,
				term_values TEXT,
				value DOUBLE NOT NULL,
				reward DOUBLE NOT NULL,
				error TEXT,
				elapsed_ms BIGINT NOT NULL,
				trial_time DATETIME(6) NOT NULL,
				PRIMARY KEY (study_id, trial_number)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				study_id BIGINT NOT NULL,
				trial_number INT NOT NULL,
				state TEXT NOT NULL,
				params TEXT NOT NULL,
				term_values TEXT,
				value DOUBLE PRECISION NOT NULL,
				reward DOUBLE PRECISION NOT NULL,
				error TEXT,
				elapsed_ms BIGINT NOT NULL,
				trial_time TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (study_id, trial_number)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				study_id INTEGER NOT NULL,
				trial_number INTEGER NOT NULL,
				state TEXT NOT NULL,
				params TEXT NOT NULL,
				term_values TEXT,
				value REAL NOT NULL,
				reward REAL NOT NULL,
				error TEXT,
				elapsed_ms INTEGER NOT NULL,
				trial_time TEXT NOT NULL,
				PRIMARY KEY (study_id, trial_number)
			);
		`, quotedTableName)
	}
}

// BeginStudy creates a new study row and returns its unique ID.
func (ts *TrialStore) BeginStudy(name string, direction schema.Direction, configParams map[string]any) (int64, error) {
	// Skip for NoneBackend
	if ts.backend == schema.NoneBackend || ts.db == nil {
		return 0, nil
	}

	// Serialize config params to JSON
	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(studiesTable, ts.backend)
	now := time.Now()

	var studyID int64
	switch ts.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (study_name, direction, config_params, created_at) VALUES ($1, $2, $3, $4) RETURNING study_id`, quotedTableName)
		err = ts.db.QueryRow(query, name, string(direction), string(configJSON), now).Scan(&studyID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (study_name, direction, config_params, created_at) VALUES (?, ?, ?, ?)`, quotedTableName)
		var result sql.Result
		result, err = ts.db.Exec(query, name, string(direction), string(configJSON), formatTime(now, ts.backend))
		if err != nil {
			return 0, err
		}
		studyID, err = result.LastInsertId()
	}

	if err != nil {
		return 0, fmt.Errorf("failed to insert study: %w", err)
	}

	return studyID, nil
}

// AppendTrial stores one trial outcome for the given study.
func (ts *TrialStore) AppendTrial(studyID int64, record schema.TrialRecord) error {
	// Skip for NoneBackend
	if ts.backend == schema.NoneBackend || ts.db == nil {
		return nil
	}

	paramsJSON, err := json.Marshal(record.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	termsJSON, err := json.Marshal(record.TermValues)
	if err != nil {
		return fmt.Errorf("failed to marshal term values: %w", err)
	}

	quotedTableName := quoteTableName(trialsTable, ts.backend)

	var query string
	switch ts.backend {
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (study_id, trial_number, state, params, term_values,
			                value, reward, error, elapsed_ms, trial_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, quotedTableName)
	default: // SQLite and MySQL
		query = fmt.Sprintf(`
			INSERT INTO %s (study_id, trial_number, state, params, term_values,
			                value, reward, error, elapsed_ms, trial_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, quotedTableName)
	}

	args := []any{
		studyID, record.Trial, string(record.State), string(paramsJSON), string(termsJSON),
		record.Value, record.Reward, record.Error, record.Elapsed.Milliseconds(),
		formatTime(record.Time, ts.backend),
	}

	if _, err := ts.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}

	return nil
}

// FetchStudies retrieves all studies from the store, oldest first.
func (ts *TrialStore) FetchStudies() ([]schema.StudyRow, error) {
	// Skip for NoneBackend
	if ts.backend == schema.NoneBackend || ts.db == nil {
		return nil, nil
	}

	quotedTableName := quoteTableName(studiesTable, ts.backend)
	query := fmt.Sprintf("SELECT study_id, study_name, direction, config_params, created_at FROM %s ORDER BY study_id", quotedTableName)

	rows, err := ts.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query studies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.StudyRow
	for rows.Next() {
		var row schema.StudyRow
		var direction string

		switch ts.backend {
		case schema.SQLiteBackend:
			var createdAtStr string
			if err := rows.Scan(&row.ID, &row.Name, &direction, &row.Config, &createdAtStr); err != nil {
				return nil, fmt.Errorf("failed to scan study: %w", err)
			}
			createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse created_at: %w", err)
			}
			row.CreatedAt = createdAt
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&row.ID, &row.Name, &direction, &row.Config, &row.CreatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan study: %w", err)
			}
		}
		row.Direction = schema.Direction(direction)
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating studies: %w", err)
	}

	return results, nil
}

// FetchTrials retrieves all trials for one study, ordered by trial number.
func (ts *TrialStore) FetchTrials(studyID int64) ([]schema.TrialRecord, error) {
	// Skip for NoneBackend
	if ts.backend == schema.NoneBackend || ts.db == nil {
		return nil, nil
	}

	quotedTableName := quoteTableName(trialsTable, ts.backend)
	query := fmt.Sprintf(`SELECT trial_number, state, params, term_values, value, reward, error, elapsed_ms, trial_time
		FROM %s WHERE study_id = %s ORDER BY trial_number`,
		quotedTableName, placeholder(1, ts.backend))

	rows, err := ts.db.Query(query, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.TrialRecord
	for rows.Next() {
		var record schema.TrialRecord
		var state, paramsJSON, termsJSON string
		var errText sql.NullString
		var elapsedMs int64

		switch ts.backend {
		case schema.SQLiteBackend:
			var trialTimeStr string
			if err := rows.Scan(&record.Trial, &state, &paramsJSON, &termsJSON,
				&record.Value, &record.Reward, &errText, &elapsedMs, &trialTimeStr); err != nil {
				return nil, fmt.Errorf("failed to scan trial: %w", err)
			}
			trialTime, err := time.Parse(time.RFC3339Nano, trialTimeStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse trial_time: %w", err)
			}
			record.Time = trialTime
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&record.Trial, &state, &paramsJSON, &termsJSON,
				&record.Value, &record.Reward, &errText, &elapsedMs, &record.Time); err != nil {
				return nil, fmt.Errorf("failed to scan trial: %w", err)
			}
		}

		record.State = schema.TrialState(state)
		record.Error = errText.String
		record.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if err := json.Unmarshal([]byte(paramsJSON), &record.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params: %w", err)
		}
		if termsJSON != "" && termsJSON != "null" {
			if err := json.Unmarshal([]byte(termsJSON), &record.TermValues); err != nil {
				return nil, fmt.Errorf("failed to decode term values: %w", err)
			}
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trials: %w", err)
	}

	return results, nil
}

// GetStatus returns counters about the trial store contents.
func (ts *TrialStore) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{Backend: ts.backend}
	if ts.backend == schema.NoneBackend || ts.db == nil {
		return status, nil
	}

	for _, item := range []struct {
		table string
		dest  *int
	}{
		{studiesTable, &status.Studies},
		{trialsTable, &status.Trials},
	} {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(item.table, ts.backend))
		if err := ts.db.QueryRow(query).Scan(item.dest); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", item.table, err)
		}
	}
	return status, nil
}

// Clear removes all studies and trials from the store.
func (ts *TrialStore) Clear() error {
	if ts.backend == schema.NoneBackend || ts.db == nil {
		return nil
	}

	for _, table := range []string{trialsTable, studiesTable} {
		query := fmt.Sprintf("DELETE FROM %s", quoteTableName(table, ts.backend))
		if _, err := ts.db.Exec(query); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (ts *TrialStore) Close() error {
	if ts.db != nil {
		return ts.db.Close()
	}
	return nil
}

// StoreSink adapts a TrialStore to the trial sink used during a search.
type StoreSink struct {
	Store   *TrialStore
	StudyID int64
}

// Append stores one trial record.
func (s *StoreSink) Append(record schema.TrialRecord) error {
	return s.Store.AppendTrial(s.StudyID, record)
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.Format(time.RFC3339Nano)
	default:
		return t
	}
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}

// placeholder returns the positional SQL placeholder for the backend.
func placeholder(n int, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.PostgreSQLBackend:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}
