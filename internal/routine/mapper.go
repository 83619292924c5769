package routine

import (
	"time"

	"github.com/markb/routinecat/internal/catalog"
)

// SYSCAT.ROUTINES columns read by the mapper.
const (
	ColRoutineName    = "ROUTINENAME"
	ColSpecificName   = "SPECIFICNAME"
	ColRoutineID      = "ROUTINEID"
	ColRoutineType    = "ROUTINETYPE"
	ColOrigin         = "ORIGIN"
	ColLanguage       = "LANGUAGE"
	ColOwner          = "OWNER"
	ColOwnerType      = "OWNERTYPE"
	ColCreateTime     = "CREATE_TIME"
	ColAlterTime      = "ALTER_TIME"
	ColLastRegenTime  = "LAST_REGEN_TIME"
	ColText           = "TEXT"
	ColRemarks        = "REMARKS"
	ColResultSets     = "RESULT_SETS"
	ColParameterStyle = "PARAMETER_STYLE"
	ColDeterministic  = "DETERMINISTIC"
	ColImplementation = "IMPLEMENTATION"
	ColDebugMode      = "DEBUG_MODE"
	ColJarID          = "JAR_ID"
	ColJarSchema      = "JARSCHEMA"
	ColJarSignature   = "JAR_SIGNATURE"
	ColClass          = "CLASS"
	ColValid          = "VALID"
	ColDialect        = "DIALECT"
	ColFunctionType   = "FUNCTIONTYPE"
)

// Policy decides what happens to enum literals missing from the tables.
type Policy int

const (
	// PolicyStrict fails the row with ErrUnknownEnumLiteral.
	PolicyStrict Policy = iota
	// PolicyLenient stores the enum's Unknown value and keeps mapping.
	PolicyLenient
)

// Mapper turns catalog rows into descriptors. It has no mutable state and
// may be shared by goroutines mapping rows of the same result set.
type Mapper struct {
	Caps   catalog.Capabilities
	Naming catalog.NameFunc // defaults to catalog.QualifiedName
	Policy Policy
}

// NewMapper returns a strict mapper for a server version.
func NewMapper(v catalog.Version) *Mapper {
	return &Mapper{Caps: catalog.CapabilitiesFor(v), Naming: catalog.QualifiedName}
}

// Lenient returns a copy of m that downgrades unknown literals.
func (m *Mapper) Lenient() *Mapper {
	c := *m
	c.Policy = PolicyLenient
	return &c
}

// Map projects row, owned by container, into a Descriptor.
func (m *Mapper) Map(row catalog.Row, container catalog.Container) (*Descriptor, error) {
	name, ok := row.String(ColRoutineName)
	if !ok {
		return nil, &MappingError{Kind: ErrMissingColumn, Column: ColRoutineName}
	}

	schema, err := catalog.EffectiveSchema(container)
	if err != nil {
		return nil, &MappingError{Kind: ErrUnresolvableContainer, Name: name}
	}

	r := reader{row: row, policy: m.Policy, name: name}
	d := &Descriptor{
		Name:      name,
		container: container,
		schema:    schema,
	}

	d.SpecificName = r.str(ColSpecificName)
	d.RoutineID = r.integer(ColRoutineID)
	d.Kind = lookup(&r, ColRoutineType, kindLiterals, KindUnknown)
	d.Origin = lookup(&r, ColOrigin, originLiterals, OriginUnknown)
	d.Language = lookup(&r, ColLanguage, languageLiterals, LanguageUnknown)
	d.Owner = r.str(ColOwner)
	d.CreatedAt = r.timestamp(ColCreateTime)
	d.AlteredAt = r.timestamp(ColAlterTime)
	d.LastRegeneratedAt = r.timestamp(ColLastRegenTime)
	d.SourceText = r.str(ColText)
	d.Remarks = r.str(ColRemarks)

	d.ResultSets = r.integer(ColResultSets)
	d.ParameterStyle = r.str(ColParameterStyle)
	d.Deterministic = r.flag(ColDeterministic)
	d.ExternalName = r.str(ColImplementation)
	d.DebugMode = r.str(ColDebugMode)

	d.Java = JavaBinding{
		JarID:        r.str(ColJarID),
		JarSchema:    r.str(ColJarSchema),
		JarSignature: r.str(ColJarSignature),
		ClassName:    r.str(ColClass),
	}
	d.Validity = lookup(&r, ColValid, validityLiterals, ValidityUnknown)

	if m.Caps.OwnerType {
		d.OwnerType = lookup(&r, ColOwnerType, ownerTypeLiterals, OwnerTypeUnknown)
	}
	if m.Caps.Dialect {
		d.Dialect = r.str(ColDialect)
	}
	if m.Caps.FunctionType && d.Kind == KindFunction {
		d.FunctionType = lookup(&r, ColFunctionType, functionTypeLiterals, FunctionTypeUnknown)
	}

	if r.err != nil {
		return nil, r.err
	}

	naming := m.Naming
	if naming == nil {
		naming = catalog.QualifiedName
	}
	d.fqName = naming(container, name)
	return d, nil
}

// SYSCAT.ROUTINEPARMS columns.
const (
	ColParmName   = "PARMNAME"
	ColOrdinal    = "ORDINAL"
	ColRowType    = "ROWTYPE"
	ColTypeSchema = "TYPESCHEMA"
	ColTypeName   = "TYPENAME"
	ColLength     = "LENGTH"
	ColScale      = "SCALE"
	ColCodePage   = "CODEPAGE"
	ColLocator    = "LOCATOR"
	ColDefault    = "DEFAULT"
)

// MapParameter projects a SYSCAT.ROUTINEPARMS row.
func (m *Mapper) MapParameter(row catalog.Row) (Parameter, error) {
	r := reader{row: row, policy: m.Policy}

	var p Parameter
	if name, ok := row.String(ColParmName); ok {
		p.Name = name
		r.name = name
	}
	if n := r.integer(ColOrdinal); n != nil {
		p.Ordinal = int(*n)
	}
	p.Mode = lookup(&r, ColRowType, paramModeLiterals, ParamModeUnknown)
	if s := r.str(ColTypeSchema); s != nil {
		p.TypeSchema = trimLiteral(*s)
	}
	if s := r.str(ColTypeName); s != nil {
		p.TypeName = trimLiteral(*s)
	}
	p.Length = r.integer(ColLength)
	p.Scale = r.integer(ColScale)
	p.CodePage = r.integer(ColCodePage)
	if b := r.flag(ColLocator); b != nil {
		p.Locator = *b
	}
	p.Default = r.str(ColDefault)
	p.Remarks = r.str(ColRemarks)

	if r.err != nil {
		return Parameter{}, r.err
	}
	return p, nil
}

// reader keeps the first mapping error so the mapper body stays linear.
type reader struct {
	row    catalog.Row
	policy Policy
	name   string
	err    error
}

func (r *reader) str(col string) *string {
	s, ok := r.row.String(col)
	if !ok {
		return nil
	}
	return &s
}

func (r *reader) integer(col string) *int64 {
	n, ok := r.row.Int(col)
	if !ok {
		return nil
	}
	return &n
}

func (r *reader) flag(col string) *bool {
	b, ok := r.row.Bool(col, "Y")
	if !ok {
		return nil
	}
	return &b
}

func (r *reader) timestamp(col string) *time.Time {
	t, ok := r.row.Time(col)
	if !ok {
		return nil
	}
	return &t
}

// lookup resolves an enum column. NULL, absent and blank values give the
// zero value; literals missing from table follow the reader's policy.
func lookup[E comparable](r *reader, col string, table literalTable[E], unknown E) E {
	var zero E
	raw, ok := r.row.String(col)
	if !ok {
		return zero
	}
	lit := trimLiteral(raw)
	if lit == "" {
		return zero
	}
	if v, ok := table[lit]; ok {
		return v
	}
	if r.policy == PolicyLenient {
		return unknown
	}
	if r.err == nil {
		r.err = &MappingError{Kind: ErrUnknownEnumLiteral, Column: col, Value: raw, Name: r.name}
	}
	return zero
}
