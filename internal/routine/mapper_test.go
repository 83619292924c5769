package routine

import (
	"errors"
	"testing"
	"time"

	"github.com/markb/routinecat/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSchema = &catalog.Schema{Name: "APP"}
	testModule = &catalog.Module{Name: "BILLING", Schema: testSchema}
)

func procedureRow() catalog.Record {
	return catalog.NewRecord(map[string]any{
		"ROUTINENAME":     "P1",
		"SPECIFICNAME":    "SQL230405101112",
		"ROUTINEID":       int64(65540),
		"ROUTINETYPE":     "P",
		"ORIGIN":          "Q",
		"LANGUAGE":        "SQL     ",
		"VALID":           "Y",
		"OWNER":           "DB2INST1",
		"OWNERTYPE":       "U",
		"DIALECT":         "DB2 SQL PL",
		"CREATE_TIME":     "2023-04-05-10.11.12.000000",
		"TEXT":            "CREATE PROCEDURE P1() BEGIN END",
		"RESULT_SETS":     int64(1),
		"DETERMINISTIC":   "N",
		"PARAMETER_STYLE": nil,
	})
}

func TestMap_Procedure(t *testing.T) {
	m := &Mapper{Caps: catalog.AllCapabilities()}

	d, err := m.Map(procedureRow(), testSchema)
	require.NoError(t, err)

	assert.Equal(t, "P1", d.Name)
	assert.Equal(t, KindProcedure, d.Kind)
	assert.Equal(t, ValidityValid, d.Validity)
	assert.Equal(t, FunctionTypeUnset, d.FunctionType)
	assert.Equal(t, LanguageSQL, d.Language)
	assert.Equal(t, OriginSQLBodied, d.Origin)
	assert.Equal(t, OwnerTypeUser, d.OwnerType)
	require.NotNil(t, d.Dialect)
	assert.Equal(t, "DB2 SQL PL", *d.Dialect)
	require.NotNil(t, d.RoutineID)
	assert.Equal(t, int64(65540), *d.RoutineID)
	require.NotNil(t, d.Deterministic)
	assert.False(t, *d.Deterministic)
	assert.Nil(t, d.ParameterStyle)
	assert.Nil(t, d.AlteredAt)
	require.NotNil(t, d.CreatedAt)
	assert.True(t, d.CreatedAt.Equal(time.Date(2023, 4, 5, 10, 11, 12, 0, time.UTC)))

	assert.Same(t, testSchema, d.Schema())
	assert.Same(t, testSchema, d.Container())
	assert.Equal(t, "APP.P1", d.FullyQualifiedName())
	assert.Equal(t, StateNormal, d.State())
	assert.Equal(t, ProcedureTypeProcedure, d.ProcedureType())
}

func TestMap_TableFunction(t *testing.T) {
	row := catalog.NewRecord(map[string]any{
		"ROUTINENAME":  "F1",
		"ROUTINETYPE":  "F",
		"FUNCTIONTYPE": "T",
		"LANGUAGE":     "SQL",
		"VALID":        "N",
	})

	d, err := NewMapper(catalog.V9_7).Map(row, testSchema)
	require.NoError(t, err)

	assert.Equal(t, KindFunction, d.Kind)
	assert.Equal(t, FunctionTypeTable, d.FunctionType)
	assert.Equal(t, StateUnknown, d.State())
	assert.Equal(t, ProcedureTypeFunction, d.ProcedureType())
	assert.Equal(t, "function", Icon(d))
}

func TestMap_CapabilityGating(t *testing.T) {
	row := catalog.NewRecord(map[string]any{
		"ROUTINENAME":  "F1",
		"ROUTINETYPE":  "F",
		"FUNCTIONTYPE": "S",
		"OWNERTYPE":    "S",
		"DIALECT":      "PL/SQL",
	})

	tests := []struct {
		version      catalog.Version
		functionType FunctionType
		ownerType    OwnerType
		hasDialect   bool
	}{
		{catalog.Version{Major: 9, Minor: 1}, FunctionTypeUnset, OwnerTypeUnset, false},
		{catalog.V9_5, FunctionTypeUnset, OwnerTypeSystem, false},
		{catalog.V9_7, FunctionTypeScalar, OwnerTypeSystem, true},
		{catalog.Version{Major: 11, Minor: 5}, FunctionTypeScalar, OwnerTypeSystem, true},
	}
	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			d, err := NewMapper(tt.version).Map(row, testSchema)
			require.NoError(t, err)
			assert.Equal(t, tt.functionType, d.FunctionType)
			assert.Equal(t, tt.ownerType, d.OwnerType)
			assert.Equal(t, tt.hasDialect, d.Dialect != nil)
		})
	}
}

func TestMap_FunctionTypeOnlyForFunctions(t *testing.T) {
	row := procedureRow()
	row.Set("FUNCTIONTYPE", "T")

	d, err := (&Mapper{Caps: catalog.AllCapabilities()}).Map(row, testSchema)
	require.NoError(t, err)
	assert.Equal(t, FunctionTypeUnset, d.FunctionType)
}

func TestMap_ModuleContainer(t *testing.T) {
	d, err := (&Mapper{}).Map(procedureRow(), testModule)
	require.NoError(t, err)

	assert.Same(t, testSchema, d.Schema())
	assert.Same(t, testModule, d.Container())
	assert.Equal(t, "APP.BILLING.P1", d.FullyQualifiedName())
}

func TestMap_UnresolvableContainer(t *testing.T) {
	_, err := (&Mapper{}).Map(procedureRow(), &catalog.Module{Name: "ORPHAN"})
	require.Error(t, err)

	var me *MappingError
	require.True(t, errors.As(err, &me))
	assert.ErrorIs(t, err, ErrUnresolvableContainer)
	assert.Equal(t, "P1", me.Name)
}

func TestMap_UnknownEnumLiteral(t *testing.T) {
	row := procedureRow()
	row.Set("ROUTINETYPE", "Z")

	_, err := (&Mapper{}).Map(row, testSchema)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEnumLiteral)

	var me *MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, ColRoutineType, me.Column)
	assert.Equal(t, "Z", me.Value)
	assert.Contains(t, err.Error(), "ROUTINETYPE")
	assert.Contains(t, err.Error(), `"Z"`)
}

func TestMap_LenientDowngradesUnknownLiterals(t *testing.T) {
	row := procedureRow()
	row.Set("ROUTINETYPE", "Z")
	row.Set("VALID", "?")

	d, err := (&Mapper{}).Lenient().Map(row, testSchema)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, d.Kind)
	assert.Equal(t, ValidityUnknown, d.Validity)
	assert.Equal(t, StateUnknown, d.State())
}

func TestMap_MissingOptionalColumns(t *testing.T) {
	row := catalog.NewRecord(map[string]any{"ROUTINENAME": "BARE"})

	d, err := (&Mapper{Caps: catalog.AllCapabilities()}).Map(row, testSchema)
	require.NoError(t, err)
	assert.Equal(t, KindUnset, d.Kind)
	assert.Equal(t, LanguageUnset, d.Language)
	assert.Nil(t, d.SpecificName)
	assert.Nil(t, d.SourceText)
	assert.Nil(t, d.Java.JarID)
	assert.NotNil(t, d.Schema())
}

func TestMap_MissingName(t *testing.T) {
	_, err := (&Mapper{}).Map(catalog.NewRecord(map[string]any{"ROUTINETYPE": "P"}), testSchema)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestMap_NameComputedOnce(t *testing.T) {
	calls := 0
	m := &Mapper{Naming: func(c catalog.Container, name string) string {
		calls++
		return "custom." + name
	}}

	d, err := m.Map(procedureRow(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, "custom.P1", d.FullyQualifiedName())
	assert.Equal(t, "custom.P1", d.FullyQualifiedName())
	assert.Equal(t, 1, calls)

	again, err := m.Map(procedureRow(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, d.FullyQualifiedName(), again.FullyQualifiedName())
}

func TestMapParameter(t *testing.T) {
	row := catalog.NewRecord(map[string]any{
		"PARMNAME":   "AMOUNT",
		"ORDINAL":    int64(2),
		"ROWTYPE":    "B",
		"TYPESCHEMA": "SYSIBM  ",
		"TYPENAME":   "DECIMAL",
		"LENGTH":     int64(10),
		"SCALE":      int64(2),
		"LOCATOR":    "N",
	})

	p, err := (&Mapper{}).MapParameter(row)
	require.NoError(t, err)
	assert.Equal(t, "AMOUNT", p.Name)
	assert.Equal(t, 2, p.Ordinal)
	assert.Equal(t, ParamModeInOut, p.Mode)
	assert.Equal(t, "SYSIBM", p.TypeSchema)
	assert.Equal(t, "DECIMAL", p.TypeName)
	require.NotNil(t, p.Scale)
	assert.Equal(t, int64(2), *p.Scale)
	assert.False(t, p.Locator)
	assert.Nil(t, p.Default)

	row.Set("ROWTYPE", "Q")
	_, err = (&Mapper{}).MapParameter(row)
	assert.ErrorIs(t, err, ErrUnknownEnumLiteral)
}

func TestEnumCodes(t *testing.T) {
	assert.Equal(t, "P", KindProcedure.Code())
	assert.Equal(t, "T", FunctionTypeTable.Code())
	assert.Equal(t, "SQL", LanguageSQL.Code())
	assert.Equal(t, "", KindUnknown.Code())
	assert.Equal(t, "Column or aggregate", FunctionTypeColumnOrAggregate.String())

	text, err := ValidityInoperative.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Inoperative", string(text))
}
