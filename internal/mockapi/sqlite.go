package mockapi

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jpalmerr/inspectwatch/internal/api"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteRepository stores records in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, file_url, thumbnail_url, description, status,
		       uploaded_at, analyzed_at, issues_count, analysis_started_at
		FROM evidences WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load evidence %s: %w", id, err)
	}

	issues, err := s.issues(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec.Detail.Issues = issues
	return rec, nil
}

// Put upserts the evidence and replaces its issues in one transaction.
func (s *SQLiteRepository) Put(ctx context.Context, rec Record) error {
	if rec.Detail.ID == "" {
		return errors.New("evidence id is required")
	}
	d := rec.Detail

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evidences (id, project_id, file_url, thumbnail_url, description, status,
		                       uploaded_at, analyzed_at, issues_count, analysis_started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			file_url = excluded.file_url,
			thumbnail_url = excluded.thumbnail_url,
			description = excluded.description,
			status = excluded.status,
			uploaded_at = excluded.uploaded_at,
			analyzed_at = excluded.analyzed_at,
			issues_count = excluded.issues_count,
			analysis_started_at = excluded.analysis_started_at`,
		d.ID, d.ProjectID, d.FileURL, d.ThumbnailURL, nullString(d.Description), string(d.Status),
		nullTime(d.UploadedAt), nullTime(d.AnalyzedAt), d.IssuesCount, nullTime(rec.AnalysisStartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert evidence %s: %w", d.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE evidence_id = ?`, d.ID); err != nil {
		return fmt.Errorf("failed to clear issues of %s: %w", d.ID, err)
	}

	for i, issue := range d.Issues {
		var location sql.NullString
		if issue.Location != nil {
			data, err := json.Marshal(issue.Location)
			if err != nil {
				return fmt.Errorf("failed to encode issue location: %w", err)
			}
			location = sql.NullString{String: string(data), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issues (evidence_id, position, id, type, description, confidence, severity, location)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i, issue.ID, issue.Type, issue.Description, issue.Confidence, string(issue.Severity), location,
		)
		if err != nil {
			return fmt.Errorf("failed to insert issue %d of %s: %w", i, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit evidence %s: %w", d.ID, err)
	}
	return nil
}

// List returns every record ordered by id.
func (s *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, file_url, thumbnail_url, description, status,
		       uploaded_at, analyzed_at, issues_count, analysis_started_at
		FROM evidences ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidences: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		issues, err := s.issues(ctx, recs[i].Detail.ID)
		if err != nil {
			return nil, err
		}
		recs[i].Detail.Issues = issues
	}
	return recs, nil
}

func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

func (s *SQLiteRepository) issues(ctx context.Context, evidenceID string) ([]api.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, description, confidence, severity, location
		FROM issues WHERE evidence_id = ? ORDER BY position`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issues of %s: %w", evidenceID, err)
	}
	defer rows.Close()

	issues := []api.Issue{}
	for rows.Next() {
		var (
			issue    api.Issue
			severity string
			location sql.NullString
		)
		if err := rows.Scan(&issue.ID, &issue.Type, &issue.Description, &issue.Confidence, &severity, &location); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Severity = api.Severity(severity)
		if location.Valid {
			var loc api.Location
			if err := json.Unmarshal([]byte(location.String), &loc); err != nil {
				return nil, fmt.Errorf("failed to decode issue location: %w", err)
			}
			issue.Location = &loc
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec         Record
		status      string
		description sql.NullString
		uploadedAt  sql.NullString
		analyzedAt  sql.NullString
		startedAt   sql.NullString
	)
	d := &rec.Detail
	err := row.Scan(&d.ID, &d.ProjectID, &d.FileURL, &d.ThumbnailURL, &description, &status,
		&uploadedAt, &analyzedAt, &d.IssuesCount, &startedAt)
	if err != nil {
		return Record{}, err
	}

	d.Status = api.AnalysisStatus(status)
	if description.Valid {
		d.Description = &description.String
	}
	if d.UploadedAt, err = parseNullTime(uploadedAt); err != nil {
		return Record{}, err
	}
	if d.AnalyzedAt, err = parseNullTime(analyzedAt); err != nil {
		return Record{}, err
	}
	if rec.AnalysisStartedAt, err = parseNullTime(startedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
