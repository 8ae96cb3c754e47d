package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lacevm/internal/asm"
	"lacevm/internal/bytecode"
)

var asmOutPath string

var asmCmd = &cobra.Command{
	Use:   "asm <file.lasm>",
	Short: "Assemble a textual program into a .lbc image",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsm,
}

func init() {
	asmCmd.Flags().StringVarP(&asmOutPath, "out", "o", "", "output .lbc path (default: input with .lbc extension)")
}

func runAsm(cmd *cobra.Command, args []string) error {
	src := args[0]
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	prog, err := asm.Assemble(filepath.Base(src), f)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	out := asmOutPath
	if out == "" {
		out = strings.TrimSuffix(src, filepath.Ext(src)) + ".lbc"
	}
	if err := bytecode.WriteFile(out, prog); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d instructions)\n", out, prog.Len())
	return nil
}
