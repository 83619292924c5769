package store

import (
	"context"
	"fmt"
	"time"

	"github.com/markb/routinecat/internal/catalog"
)

// SampleVersion is the server version recorded by SeedSample.
var SampleVersion = catalog.Version{Major: 11, Minor: 5}

func ptr[T any](v T) *T { return &v }

// SampleRoutines is a small catalog covering every routine shape the mapper
// handles, plus one LEGACY row with a routine type newer servers introduced.
func SampleRoutines() []*RoutineRow {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	altered := time.Date(2024, 6, 12, 16, 5, 0, 0, time.UTC)

	return []*RoutineRow{
		{
			Schema: "APP", SpecificName: "SQL240301093000100", Name: "ADD_CUSTOMER",
			RoutineID: ptr(int64(65601)), RoutineType: "P", Origin: "Q", Language: "SQL     ",
			Owner: "DB2INST1", OwnerType: "U", Valid: "Y", Dialect: "DB2 SQL PL",
			CreateTime: &created, AlterTime: &altered, LastRegenTime: &altered,
			ParameterStyle: "SQL", Deterministic: "N", ResultSets: ptr(int64(0)),
			Remarks: "Registers a customer and returns its id",
			Text: "create procedure app.add_customer (in p_name varchar(128), out p_id integer)\n" +
				"  language sql\n" +
				"begin\n" +
				"  insert into app.customer (name) values (p_name);\n" +
				"  set p_id = identity_val_local();\n" +
				"end",
			Params: []ParamRow{
				{Name: "P_NAME", Ordinal: 1, RowType: "P", TypeSchema: "SYSIBM  ", TypeName: "VARCHAR", Length: ptr(int64(128)), CodePage: ptr(int64(1208)), Locator: "N"},
				{Name: "P_ID", Ordinal: 2, RowType: "O", TypeSchema: "SYSIBM  ", TypeName: "INTEGER", Length: ptr(int64(4)), Locator: "N"},
			},
		},
		{
			Schema: "APP", SpecificName: "SQL240301093000200", Name: "CUSTOMER_ORDERS",
			RoutineID: ptr(int64(65602)), RoutineType: "F", FunctionType: "T", Origin: "Q", Language: "SQL",
			Owner: "DB2INST1", OwnerType: "U", Valid: "Y", Dialect: "DB2 SQL PL",
			CreateTime: &created, Deterministic: "N",
			Text: "create function app.customer_orders (p_id integer)\n" +
				"  returns table (order_id integer, total decimal(10,2))\n" +
				"  language sql reads sql data\n" +
				"return select order_id, total from app.orders where customer_id = p_id",
			Params: []ParamRow{
				{Name: "P_ID", Ordinal: 1, RowType: "P", TypeSchema: "SYSIBM", TypeName: "INTEGER", Length: ptr(int64(4)), Locator: "N"},
				{Name: "ORDER_ID", Ordinal: 1, RowType: "R", TypeSchema: "SYSIBM", TypeName: "INTEGER", Length: ptr(int64(4)), Locator: "N"},
				{Name: "TOTAL", Ordinal: 2, RowType: "R", TypeSchema: "SYSIBM", TypeName: "DECIMAL", Length: ptr(int64(10)), Scale: ptr(int64(2)), Locator: "N"},
			},
		},
		{
			Schema: "APP", SpecificName: "APP_TAX_RATE", Name: "TAX_RATE",
			RoutineID: ptr(int64(65603)), RoutineType: "F", FunctionType: "S", Origin: "E", Language: "JAVA",
			Owner: "DB2INST1", OwnerType: "U", Valid: "Y", CreateTime: &created,
			ParameterStyle: "JAVA", Deterministic: "Y", Implementation: "taxjar:com.example.Tax!rate",
			JarID: "TAXJAR", JarSchema: "APP", Class: "com.example.Tax", JarSignature: "(Ljava/lang/String;)D",
			Params: []ParamRow{
				{Name: "REGION", Ordinal: 1, RowType: "P", TypeSchema: "SYSIBM", TypeName: "VARCHAR", Length: ptr(int64(8)), Locator: "N"},
				{Ordinal: 0, RowType: "C", TypeSchema: "SYSIBM", TypeName: "DOUBLE", Length: ptr(int64(8)), Locator: "N"},
			},
		},
		{
			Schema: "APP", Module: "BILLING", SpecificName: "SQL240301093000400", Name: "CLOSE_PERIOD",
			RoutineID: ptr(int64(65604)), RoutineType: "P", Origin: "Q", Language: "SQL",
			Owner: "DB2INST1", OwnerType: "U", Valid: "N", CreateTime: &created,
			Text: "create procedure close_period (inout p_period date)\nbegin\n  call billing.archive(p_period);\nend",
			Params: []ParamRow{
				{Name: "P_PERIOD", Ordinal: 1, RowType: "B", TypeSchema: "SYSIBM", TypeName: "DATE", Length: ptr(int64(4)), Locator: "N", Default: ptr("CURRENT DATE")},
			},
		},
		{
			Schema: "LEGACY", SpecificName: "SQL240301093000500", Name: "OLD_REPORT",
			RoutineID: ptr(int64(65605)), RoutineType: "P", Origin: "E", Language: "COBOL",
			Owner: "SYSIBM", OwnerType: "S", Valid: "X", CreateTime: &created,
			Implementation: "RPTLIB!OLDRPT",
		},
		{
			Schema: "LEGACY", SpecificName: "SQL240301093000600", Name: "MYSTERY",
			RoutineID: ptr(int64(65606)), RoutineType: "Z", Origin: "Q", Language: "SQL",
			Owner: "SYSIBM", OwnerType: "S", Valid: "Y", CreateTime: &created,
			Text: "create procedure legacy.mystery() begin end",
		},
	}
}

// SeedSample loads the sample catalog into an empty snapshot.
func (s *Store) SeedSample(ctx context.Context) error {
	if err := s.SetVersion(ctx, SampleVersion); err != nil {
		return err
	}
	for _, schema := range []string{"APP", "LEGACY"} {
		if err := s.CreateSchema(ctx, schema, "DB2INST1"); err != nil {
			return err
		}
	}
	if err := s.CreateModule(ctx, "APP", "BILLING"); err != nil {
		return err
	}
	for _, r := range SampleRoutines() {
		if err := s.CreateRoutine(ctx, r); err != nil {
			return fmt.Errorf("seed sample: %w", err)
		}
	}
	return nil
}
