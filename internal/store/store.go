// Package store persists the processing unit library and pipelines in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fmueller/voxpipe/internal/pipeline"
)

// ErrPipelineNotFound is returned when a pipeline id or name does not
// match any stored pipeline.
var ErrPipelineNotFound = errors.New("pipeline not found")

const schema = `
CREATE TABLE IF NOT EXISTS units (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	user_prompt_template TEXT NOT NULL DEFAULT '',
	find TEXT NOT NULL DEFAULT '',
	replace TEXT NOT NULL DEFAULT '',
	is_regex INTEGER NOT NULL DEFAULT 0,
	case_sensitive INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipelines (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_units (
	pipeline_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	unit_id TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (pipeline_id, position)
);
`

// Store wraps the SQLite database holding units and pipelines. It
// implements pipeline.Resolver.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the database location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine config dir: %w", err)
	}
	return filepath.Join(dir, "voxpipe", "voxpipe.sqlite"), nil
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveUnit inserts or updates a unit.
func (s *Store) SaveUnit(ctx context.Context, u pipeline.Unit) error {
	var prompt pipeline.PromptSpec
	if u.Prompt != nil {
		prompt = *u.Prompt
	}
	var repl pipeline.ReplacementSpec
	if u.Replacement != nil {
		repl = *u.Replacement
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (id, name, description, kind,
			provider, model, system_prompt, user_prompt_template,
			find, replace, is_regex, case_sensitive,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			kind = excluded.kind,
			provider = excluded.provider,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			user_prompt_template = excluded.user_prompt_template,
			find = excluded.find,
			replace = excluded.replace,
			is_regex = excluded.is_regex,
			case_sensitive = excluded.case_sensitive,
			updated_at = excluded.updated_at
	`, u.ID.String(), u.Name, u.Description, string(u.Kind),
		prompt.Provider, prompt.Model, prompt.SystemPrompt, prompt.UserPromptTemplate,
		repl.Find, repl.Replace, boolToInt(repl.Regex), boolToInt(repl.CaseSensitive),
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save unit: %w", err)
	}
	return nil
}

// Unit returns the unit with the given id, or pipeline.ErrUnitNotFound.
func (s *Store) Unit(ctx context.Context, id uuid.UUID) (pipeline.Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, kind,
			provider, model, system_prompt, user_prompt_template,
			find, replace, is_regex, case_sensitive,
			created_at, updated_at
		FROM units WHERE id = ?
	`, id.String())

	unit, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Unit{}, fmt.Errorf("%w: %s", pipeline.ErrUnitNotFound, id)
	}
	if err != nil {
		return pipeline.Unit{}, fmt.Errorf("query unit: %w", err)
	}
	return unit, nil
}

// Units returns all library units ordered by creation time.
func (s *Store) Units(ctx context.Context) ([]pipeline.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, kind,
			provider, model, system_prompt, user_prompt_template,
			find, replace, is_regex, case_sensitive,
			created_at, updated_at
		FROM units ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []pipeline.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// DeleteUnit removes a unit and cascades the removal to every pipeline
// reference pointing at it.
func (s *Store) DeleteUnit(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete unit: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", pipeline.ErrUnitNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_units WHERE unit_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete unit references: %w", err)
	}

	return tx.Commit()
}

// SavePipeline inserts or updates a pipeline and rewrites its reference
// list in slice order.
func (s *Store) SavePipeline(ctx context.Context, p pipeline.Pipeline) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save pipeline: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipelines (id, name, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, p.ID.String(), p.Name, boolToInt(p.Enabled), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save pipeline: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_units WHERE pipeline_id = ?`, p.ID.String()); err != nil {
		return fmt.Errorf("clear pipeline references: %w", err)
	}
	for i, ref := range p.Units {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pipeline_units (pipeline_id, position, unit_id, enabled)
			VALUES (?, ?, ?, ?)
		`, p.ID.String(), i, ref.UnitID.String(), boolToInt(ref.Enabled))
		if err != nil {
			return fmt.Errorf("save pipeline reference: %w", err)
		}
	}

	return tx.Commit()
}

// Pipeline returns the pipeline with the given id.
func (s *Store) Pipeline(ctx context.Context, id uuid.UUID) (pipeline.Pipeline, error) {
	return s.queryPipeline(ctx, `WHERE id = ?`, id.String())
}

// PipelineByName returns the pipeline with the given name.
func (s *Store) PipelineByName(ctx context.Context, name string) (pipeline.Pipeline, error) {
	return s.queryPipeline(ctx, `WHERE name = ?`, name)
}

func (s *Store) queryPipeline(ctx context.Context, where string, arg any) (pipeline.Pipeline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, enabled, created_at, updated_at FROM pipelines `+where, arg)

	p, err := scanPipeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Pipeline{}, fmt.Errorf("%w: %v", ErrPipelineNotFound, arg)
	}
	if err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("query pipeline: %w", err)
	}

	p.Units, err = s.pipelineRefs(ctx, p.ID)
	if err != nil {
		return pipeline.Pipeline{}, err
	}
	return p, nil
}

// Pipelines returns all pipelines, references included, ordered by
// creation time.
func (s *Store) Pipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabled, created_at, updated_at
		FROM pipelines ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []pipeline.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range pipelines {
		pipelines[i].Units, err = s.pipelineRefs(ctx, pipelines[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return pipelines, nil
}

// DeletePipeline removes a pipeline and its reference list.
func (s *Store) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete pipeline: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrPipelineNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_units WHERE pipeline_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete pipeline references: %w", err)
	}

	return tx.Commit()
}

func (s *Store) pipelineRefs(ctx context.Context, id uuid.UUID) ([]pipeline.UnitRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_id, enabled FROM pipeline_units
		WHERE pipeline_id = ? ORDER BY position ASC
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query pipeline references: %w", err)
	}
	defer rows.Close()

	var refs []pipeline.UnitRef
	for rows.Next() {
		var (
			rawID   string
			enabled int
		)
		if err := rows.Scan(&rawID, &enabled); err != nil {
			return nil, fmt.Errorf("scan pipeline reference: %w", err)
		}
		unitID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse unit id %q: %w", rawID, err)
		}
		refs = append(refs, pipeline.UnitRef{UnitID: unitID, Enabled: enabled != 0})
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (pipeline.Unit, error) {
	var (
		u                    pipeline.Unit
		rawID, kind          string
		createdAt, updatedAt string
		prompt               pipeline.PromptSpec
		repl                 pipeline.ReplacementSpec
		isRegex, caseSens    int
	)
	err := row.Scan(&rawID, &u.Name, &u.Description, &kind,
		&prompt.Provider, &prompt.Model, &prompt.SystemPrompt, &prompt.UserPromptTemplate,
		&repl.Find, &repl.Replace, &isRegex, &caseSens,
		&createdAt, &updatedAt)
	if err != nil {
		return pipeline.Unit{}, err
	}

	u.ID, err = uuid.Parse(rawID)
	if err != nil {
		return pipeline.Unit{}, fmt.Errorf("parse unit id %q: %w", rawID, err)
	}
	u.Kind = pipeline.Kind(kind)
	switch u.Kind {
	case pipeline.KindPrompt:
		u.Prompt = &prompt
	case pipeline.KindReplacement:
		repl.Regex = isRegex != 0
		repl.CaseSensitive = caseSens != 0
		u.Replacement = &repl
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return pipeline.Unit{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return pipeline.Unit{}, err
	}
	return u, nil
}

func scanPipeline(row rowScanner) (pipeline.Pipeline, error) {
	var (
		p                    pipeline.Pipeline
		rawID                string
		enabled              int
		createdAt, updatedAt string
	)
	if err := row.Scan(&rawID, &p.Name, &enabled, &createdAt, &updatedAt); err != nil {
		return pipeline.Pipeline{}, err
	}

	var err error
	if p.ID, err = uuid.Parse(rawID); err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("parse pipeline id %q: %w", rawID, err)
	}
	p.Enabled = enabled != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return pipeline.Pipeline{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return pipeline.Pipeline{}, err
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
