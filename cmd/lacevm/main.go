package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lacevm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lacevm",
	Short: "lacevm — a small concurrent bytecode machine",
	Long:  `lacevm runs, assembles, disassembles, benchmarks and inspects programs for a tagged-heap, channel-based bytecode VM.`,
}

// persistent flags shared by every subcommand.
var (
	flagConfig  string
	flagDebug   bool
	flagColor   string
	flagQuantum int
	flagHeap    int
)

func main() {
	rootCmd.Version = version.String()

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a lacevm.toml config file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable step tracing")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().IntVar(&flagQuantum, "quantum", 0, "override the scheduler quantum (0 = use config)")
	rootCmd.PersistentFlags().IntVar(&flagHeap, "heap-bytes", 0, "override the heap size in bytes (0 = use config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(asmCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func colorEnabled() bool {
	switch flagColor {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}
