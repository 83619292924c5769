// Package store reads and writes the routine catalog tables. Reads return
// raw catalog records; turning them into descriptors is the mapper's job.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/db"
	"github.com/markb/routinecat/internal/routine"
)

// ErrNotFound is returned when a schema, module or routine does not exist.
var ErrNotFound = errors.New("not found")

// Store provides catalog queries over a database connection.
type Store struct {
	db     *sql.DB
	driver string
}

// New creates a Store over an open catalog database.
func New(database *db.DB) *Store {
	return &Store{db: database.DB, driver: database.Driver}
}

func (s *Store) q(query string) string {
	return db.Rebind(s.driver, query)
}

const routineColumns = `
	routinename, specificname, routineid, routinetype, origin, language,
	owner, ownertype, create_time, alter_time, last_regen_time, text, remarks,
	result_sets, parameter_style, deterministic, implementation, debug_mode,
	jar_id, jarschema, jar_signature, class, valid, dialect, functiontype`

// Schemas lists every schema in the catalog.
func (s *Store) Schemas(ctx context.Context) ([]*catalog.Schema, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT schemaname FROM syscat_schemata ORDER BY schemaname`)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	var schemas []*catalog.Schema
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		schemas = append(schemas, &catalog.Schema{Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return schemas, nil
}

// Schema looks up a single schema.
func (s *Store) Schema(ctx context.Context, name string) (*catalog.Schema, error) {
	var got string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT schemaname FROM syscat_schemata WHERE schemaname = ?`), name).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	return &catalog.Schema{Name: got}, nil
}

// Modules lists the modules of schema.
func (s *Store) Modules(ctx context.Context, schema *catalog.Schema) ([]*catalog.Module, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT modulename FROM syscat_modules WHERE moduleschema = ? ORDER BY modulename
	`), schema.Name)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var modules []*catalog.Module
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, &catalog.Module{Name: name, Schema: schema})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return modules, nil
}

// Module looks up a module of schema.
func (s *Store) Module(ctx context.Context, schema *catalog.Schema, name string) (*catalog.Module, error) {
	var got string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT modulename FROM syscat_modules WHERE moduleschema = ? AND modulename = ?
	`), schema.Name, name).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("module %s.%s: %w", schema.Name, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query module: %w", err)
	}
	return &catalog.Module{Name: got, Schema: schema}, nil
}

// RoutineRecords returns the SYSCAT.ROUTINES rows owned by container,
// ordered by routine name. Routines of a schema exclude module routines.
func (s *Store) RoutineRecords(ctx context.Context, container catalog.Container) ([]catalog.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch c := container.(type) {
	case *catalog.Schema:
		rows, err = s.db.QueryContext(ctx, s.q(`SELECT `+routineColumns+`
			FROM syscat_routines
			WHERE routineschema = ? AND routinemodulename IS NULL
			ORDER BY routinename, specificname`), c.Name)
	case *catalog.Module:
		schema, serr := catalog.EffectiveSchema(c)
		if serr != nil {
			return nil, serr
		}
		rows, err = s.db.QueryContext(ctx, s.q(`SELECT `+routineColumns+`
			FROM syscat_routines
			WHERE routineschema = ? AND routinemodulename = ?
			ORDER BY routinename, specificname`), schema.Name, c.Name)
	default:
		return nil, catalog.ErrUnresolvableContainer
	}
	if err != nil {
		return nil, fmt.Errorf("query routines: %w", err)
	}
	defer rows.Close()

	return catalog.ScanRecords(rows)
}

// ParameterRecords returns the SYSCAT.ROUTINEPARMS rows of d in ordinal order.
func (s *Store) ParameterRecords(ctx context.Context, d *routine.Descriptor) ([]catalog.Record, error) {
	if d.SpecificName == nil {
		return nil, fmt.Errorf("routine %s has no specific name", d.FullyQualifiedName())
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT parmname, ordinal, rowtype, typeschema, typename, length, scale,
		       codepage, locator, default_value AS "DEFAULT", remarks
		FROM syscat_routineparms
		WHERE routineschema = ? AND specificname = ?
		ORDER BY ordinal, rowtype
	`), d.Schema().Name, *d.SpecificName)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}
	defer rows.Close()

	return catalog.ScanRecords(rows)
}

// ParameterFetcher returns a routine.FetchFunc that maps parameter rows with m.
func (s *Store) ParameterFetcher(m *routine.Mapper) routine.FetchFunc {
	return func(ctx context.Context, d *routine.Descriptor) ([]routine.Parameter, error) {
		records, err := s.ParameterRecords(ctx, d)
		if err != nil {
			return nil, err
		}
		params := make([]routine.Parameter, 0, len(records))
		for _, rec := range records {
			p, err := m.MapParameter(rec)
			if err != nil {
				return nil, err
			}
			params = append(params, p)
		}
		return params, nil
	}
}

// Version returns the server version recorded for this catalog.
func (s *Store) Version(ctx context.Context) (catalog.Version, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM catalog_info WHERE key = 'version'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Version{}, fmt.Errorf("catalog version: %w", ErrNotFound)
	}
	if err != nil {
		return catalog.Version{}, fmt.Errorf("query catalog version: %w", err)
	}
	return catalog.ParseVersion(raw)
}

// SetVersion records the server version of this catalog.
func (s *Store) SetVersion(ctx context.Context, v catalog.Version) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO catalog_info (key, value) VALUES ('version', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`), v.String())
	if err != nil {
		return fmt.Errorf("set catalog version: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
