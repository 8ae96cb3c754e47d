package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lacevm/internal/sched"
	"lacevm/internal/ui"
	"lacevm/internal/vm"
)

var inspectStepsPerTick int

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.lasm|file.lbc>",
	Short: "Run a program with a live view of the task ring and heap occupancy",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectStepsPerTick, "steps-per-tick", 200, "instructions executed between UI redraws")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	prog, err := loadProgram(args[0])
	if err != nil {
		return fmt.Errorf("load program: %w", err)
	}

	machine := vm.New(prog, cfg.HeapBytes)
	s := sched.New(machine, cfg.Quantum, prog.Entry)

	model := ui.NewInspectModel(s, inspectStepsPerTick)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	return nil
}
