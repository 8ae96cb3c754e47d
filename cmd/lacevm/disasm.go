package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.lasm|file.lbc>",
	Short: "Print a program's instruction listing",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func runDisasm(cmd *cobra.Command, args []string) error {
	prog, err := loadProgram(args[0])
	if err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (entry=%d, %d instructions)\n", prog.Name, prog.Entry, prog.Len())
	fmt.Fprint(cmd.OutOrStdout(), prog.Disassemble())
	return nil
}
