package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lacevm/internal/sched"
	"lacevm/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run <file.lasm|file.lbc>",
	Short: "Assemble (if needed) and execute a program to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
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

	var rec *vm.Recorder
	if cfg.Debug {
		rec = vm.NewRecorder(os.Stderr)
		machine.Trace = rec
	}

	runErr := s.Run()
	if rec != nil {
		var vmErr *vm.VMError
		errors.As(runErr, &vmErr)
		rec.RecordHalt(vmErr)
	}

	if runErr != nil {
		errColor := color.New(color.FgRed, color.Bold)
		if errors.Is(runErr, sched.ErrStepLimitExceeded) {
			errColor = color.New(color.FgYellow, color.Bold)
		}
		if colorEnabled() {
			errColor.Fprintln(os.Stderr, runErr.Error())
		} else {
			fmt.Fprintln(os.Stderr, runErr.Error())
		}
		return runErr
	}

	stats := machine.Heap.Stats()
	if cfg.Debug {
		fmt.Fprintf(os.Stderr, "heap: %d/%d nodes live, %d sweeps\n", stats.LiveNodes, stats.TotalNodes, stats.Sweeps)
	}
	return nil
}
