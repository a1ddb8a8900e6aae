// Package cli defines the cobra command surface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type Args struct {
	URL        string
	Quality    int
	ConfigPath string
	JSON       bool
	Metadata   bool
	NoProgress bool
	NoSandbox  bool
	Debug      bool
	LogFile    string
}

// NewRootCommand builds the root command. run executes after flags and the
// positional URL have been bound into a.
func NewRootCommand(a *Args, run func() error) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "streamsift <url>",
		Short:        "Resolve a media URL into a playable stream",
		Long:         "streamsift resolves an arbitrary URL into a playable stream or embeddable preview,\ncascading through public extraction services and a sandboxed universal extractor.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, pos []string) error {
			a.URL = pos[0]
			if a.Quality != 0 {
				switch a.Quality {
				case 360, 480, 720, 1080:
				default:
					return fmt.Errorf("unsupported quality %d (valid: 360, 480, 720, 1080)", a.Quality)
				}
			}
			return run()
		},
	}

	f := cmd.Flags()
	f.IntVarP(&a.Quality, "quality", "q", 0, "preferred quality tier (360|480|720|1080); default from config")
	f.StringVarP(&a.ConfigPath, "config", "c", "", "config file path")
	f.BoolVar(&a.JSON, "json", false, "print the result as JSON")
	f.BoolVar(&a.Metadata, "metadata", false, "also fetch title/description/thumbnail")
	f.BoolVar(&a.NoProgress, "no-progress", false, "disable the progress spinner")
	f.BoolVar(&a.NoSandbox, "no-sandbox", false, "skip the WASM universal fallback")
	f.BoolVar(&a.Debug, "debug", false, "enable debug logging")
	f.StringVar(&a.LogFile, "log-file", "", "tee logs to a file")
	return cmd
}
