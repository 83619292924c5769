// Package routine maps DB2 routine catalog rows (SYSCAT.ROUTINES and
// SYSCAT.ROUTINEPARMS) into typed descriptors and loads their parameters on
// demand.
package routine

import (
	"context"
	"time"

	"github.com/markb/routinecat/internal/catalog"
)

// JavaBinding locates the implementation of a Java routine.
type JavaBinding struct {
	JarID        *string `json:"jar_id,omitempty"`
	JarSchema    *string `json:"jar_schema,omitempty"`
	JarSignature *string `json:"jar_signature,omitempty"`
	ClassName    *string `json:"class_name,omitempty"`
}

// Descriptor is the typed projection of one SYSCAT.ROUTINES row.
// Apart from the parameter cache it is immutable once mapped.
type Descriptor struct {
	Name         string  `json:"name"`
	SpecificName *string `json:"specific_name,omitempty"`
	RoutineID    *int64  `json:"routine_id,omitempty"`

	Kind         Kind         `json:"kind"`
	FunctionType FunctionType `json:"function_type,omitempty"`
	Origin       Origin       `json:"origin,omitempty"`
	Language     Language     `json:"language,omitempty"`
	Validity     Validity     `json:"validity,omitempty"`

	SourceText     *string     `json:"source_text,omitempty"`
	Dialect        *string     `json:"dialect,omitempty"`
	ExternalName   *string     `json:"external_name,omitempty"`
	Java           JavaBinding `json:"java"`
	ParameterStyle *string     `json:"parameter_style,omitempty"`
	Deterministic  *bool       `json:"deterministic,omitempty"`
	ResultSets     *int64      `json:"result_sets,omitempty"`
	DebugMode      *string     `json:"debug_mode,omitempty"`
	Remarks        *string     `json:"remarks,omitempty"`

	CreatedAt         *time.Time `json:"created_at,omitempty"`
	AlteredAt         *time.Time `json:"altered_at,omitempty"`
	LastRegeneratedAt *time.Time `json:"last_regenerated_at,omitempty"`

	Owner     *string   `json:"owner,omitempty"`
	OwnerType OwnerType `json:"owner_type,omitempty"`

	container catalog.Container
	schema    *catalog.Schema
	fqName    string
	params    ParamCache
}

// Container returns the schema or module the routine was mapped under.
func (d *Descriptor) Container() catalog.Container { return d.container }

// Schema returns the effective schema. Never nil for a mapped descriptor.
func (d *Descriptor) Schema() *catalog.Schema { return d.schema }

// FullyQualifiedName returns the name computed when the row was mapped.
func (d *Descriptor) FullyQualifiedName() string { return d.fqName }

// IsFunction reports whether the routine is a function or a method.
func (d *Descriptor) IsFunction() bool {
	return d.Kind == KindFunction || d.Kind == KindMethod
}

// ProcedureType maps Kind to the database-neutral classification.
func (d *Descriptor) ProcedureType() ProcedureType {
	switch d.Kind {
	case KindProcedure:
		return ProcedureTypeProcedure
	case KindFunction, KindMethod:
		return ProcedureTypeFunction
	}
	return ProcedureTypeUnknown
}

// ObjectState is the health of a catalog object as shown to users.
type ObjectState string

const (
	StateNormal  ObjectState = "normal"
	StateUnknown ObjectState = "unknown"
)

// State is normal only for routines the catalog marks valid.
func (d *Descriptor) State() ObjectState {
	if d.Validity == ValidityValid {
		return StateNormal
	}
	return StateUnknown
}

// Parameters returns the routine's parameters, calling fetch only if they
// are not cached yet.
func (d *Descriptor) Parameters(ctx context.Context, fetch FetchFunc) ([]Parameter, error) {
	return d.params.Get(ctx, d, fetch)
}

// Refresh drops cached children. Call hooks run after the cache is cleared;
// the first failing hook aborts the refresh.
func (d *Descriptor) Refresh(ctx context.Context, hooks ...func(context.Context, *Descriptor) error) (*Descriptor, error) {
	d.params.Clear()
	for _, hook := range hooks {
		if err := hook(ctx, d); err != nil {
			return d, &RefreshError{Routine: d.fqName, Err: err}
		}
	}
	return d, nil
}

// Parameter is the typed projection of one SYSCAT.ROUTINEPARMS row.
type Parameter struct {
	Name       string    `json:"name"`
	Ordinal    int       `json:"ordinal"`
	Mode       ParamMode `json:"mode"`
	TypeSchema string    `json:"type_schema,omitempty"`
	TypeName   string    `json:"type_name"`
	Length     *int64    `json:"length,omitempty"`
	Scale      *int64    `json:"scale,omitempty"`
	CodePage   *int64    `json:"code_page,omitempty"`
	Locator    bool      `json:"locator,omitempty"`
	Default    *string   `json:"default,omitempty"`
	Remarks    *string   `json:"remarks,omitempty"`
}
