package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// generatorModules are reported so a bug report names the SDKs in use.
var generatorModules = []string{"google.golang.org/genai", "github.com/sashabaranov/go-openai"}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the jarvis build, the Go toolchain, the config schema and the generator SDK versions.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info, _ := debug.ReadBuildInfo()

			for _, line := range versionLines(info) {
				cmd.Println(line)
			}
		},
	}
}

func versionLines(info *debug.BuildInfo) []string {
	if info == nil {
		return []string{"jarvis unknown", fmt.Sprintf("config schema v%d", currentConfigVersion)}
	}

	version := info.Main.Version
	if version == "" {
		version = "(devel)"
	}

	var revision string
	var modified bool

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	header := "jarvis " + version
	if revision != "" {
		header += " (" + shortRevision(revision)
		if modified {
			header += ", modified"
		}
		header += ")"
	}

	lines := []string{
		header,
		"go " + info.GoVersion,
		fmt.Sprintf("config schema v%d", currentConfigVersion),
	}

	for _, dep := range info.Deps {
		for _, name := range generatorModules {
			if dep.Path == name {
				lines = append(lines, "generator sdk "+dep.Path+" "+dep.Version)
			}
		}
	}

	return lines
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}

	return rev
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
