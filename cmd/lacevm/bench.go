package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lacevm/internal/sched"
	"lacevm/internal/vm"
)

var (
	benchMaxSteps     int
	benchMaxHeapBytes int
)

var benchCmd = &cobra.Command{
	Use:   "bench <dir>",
	Short: "Run every .lasm/.lbc fixture in a directory concurrently, each on its own heap",
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchMaxSteps, "max-steps", 5_000_000, "per-fixture instruction fuel (0 = unbounded)")
	benchCmd.Flags().IntVar(&benchMaxHeapBytes, "max-heap-bytes", 0, "per-fixture cap on heap growth in bytes (0 = unbounded)")
}

// benchResult is one fixture's outcome, collected independently of the
// others so a single failing program can't stall the rest.
type benchResult struct {
	path     string
	err      error
	duration time.Duration
}

func runBench(cmd *cobra.Command, args []string) error {
	dir := args[0]
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".lasm" || ext == ".lbc" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return fmt.Errorf("no .lasm/.lbc fixtures found in %s", dir)
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	results := make([]benchResult, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(runtimeParallelism())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = runFixture(path, cfg.Quantum, cfg.HeapBytes, benchMaxSteps, benchMaxHeapBytes)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		status := "ok"
		if r.err != nil {
			status = "FAIL: " + r.err.Error()
			failed++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %8s  %s\n", r.path, r.duration.Round(time.Microsecond), status)
	}
	if failed > 0 {
		return fmt.Errorf("%d/%d fixtures failed", failed, len(results))
	}
	return nil
}

// runFixture assembles/loads and runs a single program against its own
// heap and scheduler, independent of every other fixture in the batch.
func runFixture(path string, quantum, heapBytes, maxSteps, maxHeapBytes int) benchResult {
	start := time.Now()
	prog, err := loadProgram(path)
	if err != nil {
		return benchResult{path: path, err: err}
	}
	machine := vm.New(prog, heapBytes)
	machine.Stdout = io.Discard
	machine.Heap.SetLimitBytes(maxHeapBytes)
	s := sched.New(machine, quantum, prog.Entry)
	s.MaxSteps = maxSteps
	err = s.Run()
	return benchResult{path: path, err: err, duration: time.Since(start)}
}

func runtimeParallelism() int {
	if n := runtime.NumCPU(); n > 1 {
		return n
	}
	return 1
}
