package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LetsVenture2021/FollowGPT/pkg/macro"
	"github.com/spf13/cobra"
)

var (
	macroRunYes   bool
	macroRunCwd   string
	macroExportTo string
)

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Manage and run recorded macros",
}

var macroListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored macros",
	Args:  cobra.NoArgs,
	RunE:  runMacroList,
}

var macroRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a stored macro",
	Long: `Run a stored macro step by step. The first failing step stops the
macro and no later step runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runMacroRun,
}

var macroExportCmd = &cobra.Command{
	Use:   "export [name...]",
	Short: "Export macros as YAML (all macros when no name is given)",
	RunE:  runMacroExport,
}

var macroImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import macros from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMacroImport,
}

var macroDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored macro",
	Args:  cobra.ExactArgs(1),
	RunE:  runMacroDelete,
}

func init() {
	macroRunCmd.Flags().BoolVarP(&macroRunYes, "yes", "y", false, "approve every mutating step")
	macroRunCmd.Flags().StringVar(&macroRunCwd, "cwd", "", "working directory for the macro (default is the current directory)")
	macroExportCmd.Flags().StringVarP(&macroExportTo, "output", "o", "", "write to file instead of stdout")

	macroCmd.AddCommand(macroListCmd)
	macroCmd.AddCommand(macroRunCmd)
	macroCmd.AddCommand(macroExportCmd)
	macroCmd.AddCommand(macroImportCmd)
	macroCmd.AddCommand(macroDeleteCmd)
	rootCmd.AddCommand(macroCmd)
}

func runMacroList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	macros, err := a.store.LoadMacros(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(macros) == 0 {
		fmt.Fprintln(out, "No macros stored.")
		return nil
	}
	for _, m := range macros {
		fmt.Fprintf(out, "%s (%d steps)\n", m.Name, len(m.Steps))
		for i, step := range m.Steps {
			fmt.Fprintf(out, "  %d. %s\n", i+1, step)
		}
	}
	return nil
}

func runMacroRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cwd, err := workingDir(macroRunCwd)
	if err != nil {
		return err
	}
	execCtx := a.executionContext("macro:"+args[0], cwd, a.confirmer(macroRunYes))

	results, runErr := a.macros.Run(cmd.Context(), args[0], execCtx)

	out := cmd.OutOrStdout()
	for i, res := range results {
		output, _ := json.Marshal(res.Output)
		fmt.Fprintf(out, "  %d. %s ok %s\n", i+1, res.Step, output)
	}
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(out, "Macro %s completed (%d steps)\n", args[0], len(results))
	return nil
}

func runMacroExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var macros []macro.Macro
	if len(args) == 0 {
		macros, err = a.store.LoadMacros(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		for _, name := range args {
			m, err := a.store.GetMacro(cmd.Context(), name)
			if err != nil {
				return err
			}
			macros = append(macros, *m)
		}
	}

	data, err := macro.ExportYAML(macros...)
	if err != nil {
		return err
	}

	if macroExportTo == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(macroExportTo, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", macroExportTo, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d macros to %s\n", len(macros), macroExportTo)
	return nil
}

func runMacroImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	macros, err := macro.ImportYAML(data)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, m := range macros {
		if err := a.store.SaveMacro(cmd.Context(), m.Name, m.Steps); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d macros\n", len(macros))
	return nil
}

func runMacroDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.store.DeleteMacro(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", macro.ErrMacroNotFound, args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted macro %s\n", args[0])
	return nil
}
