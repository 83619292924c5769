package routine

import "strings"

// literalTable resolves single-letter catalog codes to enum values.
type literalTable[E comparable] map[string]E

func (t literalTable[E]) code(v E) string {
	for k, e := range t {
		if e == v {
			return k
		}
	}
	return ""
}

// Kind is SYSCAT.ROUTINES.ROUTINETYPE.
type Kind int

const (
	KindUnset Kind = iota
	KindProcedure
	KindFunction
	KindMethod
	KindUnknown
)

var kindLiterals = literalTable[Kind]{
	"P": KindProcedure,
	"F": KindFunction,
	"M": KindMethod,
}

func (k Kind) String() string {
	switch k {
	case KindProcedure:
		return "Procedure"
	case KindFunction:
		return "Function"
	case KindMethod:
		return "Method"
	case KindUnknown:
		return "Unknown"
	}
	return ""
}

// Code returns the catalog literal, or "" for unset and unknown values.
func (k Kind) Code() string { return kindLiterals.code(k) }
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// FunctionType is SYSCAT.ROUTINES.FUNCTIONTYPE.
type FunctionType int

const (
	FunctionTypeUnset FunctionType = iota
	FunctionTypeColumnOrAggregate
	FunctionTypeRow
	FunctionTypeScalar
	FunctionTypeTable
	FunctionTypeUnknown
)

var functionTypeLiterals = literalTable[FunctionType]{
	"C": FunctionTypeColumnOrAggregate,
	"R": FunctionTypeRow,
	"S": FunctionTypeScalar,
	"T": FunctionTypeTable,
}

func (f FunctionType) String() string {
	switch f {
	case FunctionTypeColumnOrAggregate:
		return "Column or aggregate"
	case FunctionTypeRow:
		return "Row"
	case FunctionTypeScalar:
		return "Scalar"
	case FunctionTypeTable:
		return "Table"
	case FunctionTypeUnknown:
		return "Unknown"
	}
	return ""
}

func (f FunctionType) Code() string { return functionTypeLiterals.code(f) }
func (f FunctionType) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Origin is SYSCAT.ROUTINES.ORIGIN.
type Origin int

const (
	OriginUnset Origin = iota
	OriginBuiltIn
	OriginExternal
	OriginFederated
	OriginTemplate
	OriginSQLBodied
	OriginSystemGenerated
	OriginSystemTransform
	OriginTemplateWrapper
	OriginSourced
	OriginUnknown
)

var originLiterals = literalTable[Origin]{
	"B": OriginBuiltIn,
	"E": OriginExternal,
	"F": OriginFederated,
	"M": OriginTemplate,
	"Q": OriginSQLBodied,
	"R": OriginSystemGenerated,
	"S": OriginSystemTransform,
	"T": OriginTemplateWrapper,
	"U": OriginSourced,
}

var originNames = map[Origin]string{
	OriginBuiltIn:         "Built-in",
	OriginExternal:        "User-defined, external",
	OriginFederated:       "Federated procedure",
	OriginTemplate:        "Template function",
	OriginSQLBodied:       "SQL-bodied",
	OriginSystemGenerated: "System-generated",
	OriginSystemTransform: "System-generated transform",
	OriginTemplateWrapper: "Federated template wrapper",
	OriginSourced:         "User-defined, based on a source",
	OriginUnknown:         "Unknown",
}

func (o Origin) String() string { return originNames[o] }
func (o Origin) Code() string { return originLiterals.code(o) }
func (o Origin) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Language is SYSCAT.ROUTINES.LANGUAGE. The column is CHAR(8) and padded, so
// literals are trimmed before lookup.
type Language int

const (
	LanguageUnset Language = iota
	LanguageC
	LanguageCOBOL
	LanguageCLR
	LanguageJava
	LanguageOLE
	LanguageOLEDB
	LanguageSQL
	LanguageUnknown
)

var languageLiterals = literalTable[Language]{
	"C":     LanguageC,
	"COBOL": LanguageCOBOL,
	"CLR":   LanguageCLR,
	"JAVA":  LanguageJava,
	"OLE":   LanguageOLE,
	"OLEDB": LanguageOLEDB,
	"SQL":   LanguageSQL,
}

func (l Language) String() string {
	if l == LanguageUnknown {
		return "Unknown"
	}
	return l.Code()
}

func (l Language) Code() string { return languageLiterals.code(l) }
func (l Language) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Validity is SYSCAT.ROUTINES.VALID.
type Validity int

const (
	ValidityUnset Validity = iota
	ValidityValid
	ValidityInvalid
	ValidityInoperative
	ValidityUnknown
)

var validityLiterals = literalTable[Validity]{
	"Y": ValidityValid,
	"N": ValidityInvalid,
	"X": ValidityInoperative,
}

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "Valid"
	case ValidityInvalid:
		return "Invalid"
	case ValidityInoperative:
		return "Inoperative"
	case ValidityUnknown:
		return "Unknown"
	}
	return ""
}

func (v Validity) Code() string { return validityLiterals.code(v) }
func (v Validity) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// OwnerType is SYSCAT.ROUTINES.OWNERTYPE.
type OwnerType int

const (
	OwnerTypeUnset OwnerType = iota
	OwnerTypeSystem
	OwnerTypeUser
	OwnerTypeUnknown
)

var ownerTypeLiterals = literalTable[OwnerType]{
	"S": OwnerTypeSystem,
	"U": OwnerTypeUser,
}

func (o OwnerType) String() string {
	switch o {
	case OwnerTypeSystem:
		return "System"
	case OwnerTypeUser:
		return "User"
	case OwnerTypeUnknown:
		return "Unknown"
	}
	return ""
}

func (o OwnerType) Code() string { return ownerTypeLiterals.code(o) }
func (o OwnerType) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// ParamMode is SYSCAT.ROUTINEPARMS.ROWTYPE.
type ParamMode int

const (
	ParamModeUnset ParamMode = iota
	ParamModeIn
	ParamModeOut
	ParamModeInOut
	ParamModeResultAfterCast
	ParamModeResult
	ParamModeUnknown
)

var paramModeLiterals = literalTable[ParamMode]{
	"P": ParamModeIn,
	"O": ParamModeOut,
	"B": ParamModeInOut,
	"C": ParamModeResultAfterCast,
	"R": ParamModeResult,
}

func (m ParamMode) String() string {
	switch m {
	case ParamModeIn:
		return "IN"
	case ParamModeOut:
		return "OUT"
	case ParamModeInOut:
		return "INOUT"
	case ParamModeResultAfterCast:
		return "RESULT (after cast)"
	case ParamModeResult:
		return "RESULT"
	case ParamModeUnknown:
		return "Unknown"
	}
	return ""
}

func (m ParamMode) Code() string { return paramModeLiterals.code(m) }
func (m ParamMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ProcedureType is the generic classification shared with other databases.
type ProcedureType string

const (
	ProcedureTypeProcedure ProcedureType = "PROCEDURE"
	ProcedureTypeFunction  ProcedureType = "FUNCTION"
	ProcedureTypeUnknown   ProcedureType = "UNKNOWN"
)

func trimLiteral(s string) string {
	return strings.TrimSpace(s)
}
