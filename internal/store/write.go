package store

import (
	"context"
	"fmt"
	"time"
)

// RoutineRow is a raw SYSCAT.ROUTINES row as written to a snapshot. Codes
// are stored verbatim, unknown literals included.
type RoutineRow struct {
	Schema         string
	Module         string // empty for schema-level routines
	SpecificName   string
	Name           string
	RoutineID      *int64
	RoutineType    string
	Origin         string
	Language       string
	Owner          string
	OwnerType      string
	CreateTime     *time.Time
	AlterTime      *time.Time
	LastRegenTime  *time.Time
	Text           string
	Remarks        string
	ResultSets     *int64
	ParameterStyle string
	Deterministic  string
	Implementation string
	DebugMode      string
	JarID          string
	JarSchema      string
	JarSignature   string
	Class          string
	Valid          string
	Dialect        string
	FunctionType   string
	Params         []ParamRow
}

// ParamRow is a raw SYSCAT.ROUTINEPARMS row.
type ParamRow struct {
	Name       string
	Ordinal    int
	RowType    string
	TypeSchema string
	TypeName   string
	Length     *int64
	Scale      *int64
	CodePage   *int64
	Locator    string
	Default    *string
	Remarks    string
}

// CreateSchema adds a schema.
func (s *Store) CreateSchema(ctx context.Context, name, owner string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO syscat_schemata (schemaname, owner) VALUES (?, ?)
	`), name, nullString(owner))
	if err != nil {
		return fmt.Errorf("insert schema %s: %w", name, err)
	}
	return nil
}

// CreateModule adds a module to an existing schema.
func (s *Store) CreateModule(ctx context.Context, schema, name string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO syscat_modules (moduleschema, modulename) VALUES (?, ?)
	`), schema, name)
	if err != nil {
		return fmt.Errorf("insert module %s.%s: %w", schema, name, err)
	}
	return nil
}

// CreateRoutine stores a routine and its parameters in one transaction.
func (s *Store) CreateRoutine(ctx context.Context, r *RoutineRow) error {
	if r.SpecificName == "" {
		r.SpecificName = r.Name
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO syscat_routines (
			routineschema, routinemodulename, specificname, routinename, routineid,
			routinetype, origin, language, owner, ownertype,
			create_time, alter_time, last_regen_time, text, remarks,
			result_sets, parameter_style, deterministic, implementation, debug_mode,
			jar_id, jarschema, jar_signature, class, valid, dialect, functiontype
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		r.Schema, nullString(r.Module), r.SpecificName, r.Name, r.RoutineID,
		nullString(r.RoutineType), nullString(r.Origin), nullString(r.Language), nullString(r.Owner), nullString(r.OwnerType),
		formatTime(r.CreateTime), formatTime(r.AlterTime), formatTime(r.LastRegenTime), nullString(r.Text), nullString(r.Remarks),
		r.ResultSets, nullString(r.ParameterStyle), nullString(r.Deterministic), nullString(r.Implementation), nullString(r.DebugMode),
		nullString(r.JarID), nullString(r.JarSchema), nullString(r.JarSignature), nullString(r.Class),
		nullString(r.Valid), nullString(r.Dialect), nullString(r.FunctionType),
	)
	if err != nil {
		return fmt.Errorf("insert routine %s: %w", r.Name, err)
	}

	for _, p := range r.Params {
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO syscat_routineparms (
				routineschema, specificname, parmname, ordinal, rowtype, typeschema, typename,
				length, scale, codepage, locator, default_value, remarks
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			r.Schema, r.SpecificName, nullString(p.Name), p.Ordinal, p.RowType,
			nullString(p.TypeSchema), nullString(p.TypeName), p.Length, p.Scale, p.CodePage,
			nullString(p.Locator), p.Default, nullString(p.Remarks),
		)
		if err != nil {
			return fmt.Errorf("insert parameter %s of %s: %w", p.Name, r.Name, err)
		}
	}

	return tx.Commit()
}

// DeleteRoutine removes a routine by specific name.
func (s *Store) DeleteRoutine(ctx context.Context, schema, specificName string) error {
	result, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM syscat_routines WHERE routineschema = ? AND specificname = ?
	`), schema, specificName)
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("routine %s.%s: %w", schema, specificName, ErrNotFound)
	}
	return nil
}

// nullString converts an empty string to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
