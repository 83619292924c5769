package cmd

import (
	"fmt"
	"strconv"

	"github.com/markb/routinecat/internal/routine"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan SCHEMA",
	Short: "List the routines of a schema or module",
	Long: `Reads every routine row of a schema (or of one of its modules with
--module) and prints the mapped routines. Rows that cannot be mapped are
reported separately; with --strict-exit they make the command fail.`,
	Example: `  routinecat scan APP
  routinecat scan APP --module BILLING -o json
  routinecat scan LEGACY --lenient`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		module, _ := cmd.Flags().GetString("module")
		c, err := a.container(cmd.Context(), args[0], module)
		if err != nil {
			return err
		}
		res, err := a.catalog.Routines(cmd.Context(), c)
		if err != nil {
			return err
		}

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if format == outputJSON {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else {
			rows := make([][]string, 0, len(res.Routines))
			for _, d := range res.Routines {
				rows = append(rows, []string{
					d.FullyQualifiedName(),
					deref(d.SpecificName),
					string(d.ProcedureType()),
					d.FunctionType.String(),
					d.Language.String(),
					string(d.State()),
				})
			}
			writeTable(out, []string{"ROUTINE", "SPECIFIC NAME", "TYPE", "FUNCTION TYPE", "LANGUAGE", "STATE"}, rows)

			if len(res.Failures) > 0 {
				failures := make([][]string, 0, len(res.Failures))
				for _, f := range res.Failures {
					failures = append(failures, []string{strconv.Itoa(f.Index), f.Name, f.Error})
				}
				fmt.Fprintf(out, "\n%d row(s) could not be mapped:\n", len(res.Failures))
				writeTable(out, []string{"ROW", "NAME", "ERROR"}, failures)
			}
		}

		if strict, _ := cmd.Flags().GetBool("strict-exit"); strict && len(res.Failures) > 0 {
			return fmt.Errorf("%d catalog row(s) failed to map: %w", len(res.Failures), res.Failures[0].Err)
		}
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe SCHEMA ROUTINE",
	Short: "Show every property of a routine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.routine(cmd, args)
		if err != nil {
			return err
		}

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if format == outputJSON {
			return writeJSON(out, d)
		}

		writeTable(out, []string{"PROPERTY", "VALUE"}, [][]string{
			{"Name", d.FullyQualifiedName()},
			{"Schema", d.Schema().Name},
			{"Specific name", deref(d.SpecificName)},
			{"Routine ID", deref(d.RoutineID)},
			{"Type", d.Kind.String()},
			{"Procedure type", string(d.ProcedureType())},
			{"Function type", d.FunctionType.String()},
			{"Origin", d.Origin.String()},
			{"Language", d.Language.String()},
			{"Validity", d.Validity.String()},
			{"State", string(d.State())},
			{"Dialect", deref(d.Dialect)},
			{"External name", deref(d.ExternalName)},
			{"Java class", deref(d.Java.ClassName)},
			{"Jar", deref(d.Java.JarID)},
			{"Parameter style", deref(d.ParameterStyle)},
			{"Deterministic", deref(d.Deterministic)},
			{"Result sets", deref(d.ResultSets)},
			{"Debug mode", deref(d.DebugMode)},
			{"Owner", deref(d.Owner)},
			{"Owner type", d.OwnerType.String()},
			{"Created", deref(d.CreatedAt)},
			{"Altered", deref(d.AlteredAt)},
			{"Last regenerated", deref(d.LastRegeneratedAt)},
			{"Remarks", deref(d.Remarks)},
		})
		return nil
	},
}

var paramsCmd = &cobra.Command{
	Use:   "params SCHEMA ROUTINE",
	Short: "List the parameters of a routine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.routine(cmd, args)
		if err != nil {
			return err
		}
		params, err := a.catalog.Parameters(cmd.Context(), d)
		if err != nil {
			return err
		}

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if format == outputJSON {
			return writeJSON(out, params)
		}

		rows := make([][]string, 0, len(params))
		for _, p := range params {
			rows = append(rows, []string{
				strconv.Itoa(p.Ordinal),
				p.Name,
				p.Mode.String(),
				typeName(p),
				deref(p.Default),
			})
		}
		writeTable(out, []string{"#", "NAME", "MODE", "TYPE", "DEFAULT"}, rows)
		return nil
	},
}

var ddlCmd = &cobra.Command{
	Use:   "ddl SCHEMA ROUTINE",
	Short: "Print the source of an SQL routine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.routine(cmd, args)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("format")
		text := routine.Definition(d, routine.DefinitionOptions{Format: routine.ParseDDLFormat(raw)})
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

// typeName renders a parameter type like VARCHAR(40) or DECIMAL(10,2).
func typeName(p routine.Parameter) string {
	name := p.TypeName
	if p.TypeSchema != "" && p.TypeSchema != "SYSIBM" {
		name = p.TypeSchema + "." + name
	}
	switch {
	case p.Length != nil && p.Scale != nil && *p.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", name, *p.Length, *p.Scale)
	case p.Length != nil && (p.TypeName == "VARCHAR" || p.TypeName == "CHARACTER" || p.TypeName == "DECIMAL"):
		return fmt.Sprintf("%s(%d)", name, *p.Length)
	}
	return name
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, describeCmd, paramsCmd, ddlCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("module", "", "Module inside the schema")
	}
	scanCmd.Flags().Bool("strict-exit", false, "Exit non-zero when any row fails to map")
	ddlCmd.Flags().String("format", "raw", "Definition format: raw or formatted")
}
