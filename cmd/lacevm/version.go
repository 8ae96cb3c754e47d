package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lacevm/internal/version"
)

var versionFormat string

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	Tagline   string `json:"tagline"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)
)

// coloredVersion renders Major.Minor.Patch-Pre with each numeric segment
// in its own color.
func coloredVersion() string {
	pre := ""
	if version.Pre != "" {
		pre = "-" + version.Pre
	}
	return versionMajorColor.Sprint(version.Major) + "." +
		versionMinorColor.Sprint(version.Minor) + "." +
		versionPatchColor.Sprint(version.Patch) + pre
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show lacevm build fingerprints",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch versionFormat {
		case "pretty", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
		if versionFormat == "json" {
			return renderVersionJSON(cmd.OutOrStdout())
		}
		renderVersionPretty(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

func renderVersionPretty(w io.Writer) {
	if colorEnabled() {
		fmt.Fprintf(w, "lacevm %s\n", coloredVersion())
		color.New(color.FgCyan).Fprintf(w, "%s\n", version.Tagline)
	} else {
		fmt.Fprintf(w, "lacevm %s\n%s\n", version.String(), version.Tagline)
	}
	if version.GitCommit != "" {
		fmt.Fprintf(w, "commit: %s\n", version.GitCommit)
	}
	if version.BuildDate != "" {
		fmt.Fprintf(w, "built:  %s\n", version.BuildDate)
	}
}

func renderVersionJSON(w io.Writer) error {
	payload := versionPayload{
		Tool:      "lacevm",
		Version:   version.String(),
		Tagline:   version.Tagline,
		GitCommit: version.GitCommit,
		BuildDate: version.BuildDate,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
