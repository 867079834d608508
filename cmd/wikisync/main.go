// Command wikisync publishes a directory of Markdown documents as child
// pages of one Confluence page and removes pages whose document is gone.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	// Gateway backends register themselves.
	_ "github.com/wikisync/wikisync/internal/gateway/cli"
	_ "github.com/wikisync/wikisync/internal/gateway/rest"
)

const (
	exitFailure = 1
	exitUsage   = 125
)

var (
	configPaths []string
	noColor     bool
	verbose     bool

	// appFS is the filesystem used for documents, templates, state and
	// configuration.
	appFS afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "wikisync",
	Short: "Synchronize Markdown documents to Confluence pages",
	Long: `wikisync publishes every Markdown document in a directory as a child page
of one Confluence page, skipping documents whose rendered content has not
changed since the last successful sync, and deletes child pages that no longer
have a local document.

The root document (README.md by default) is published onto the parent page
itself.

Running wikisync without a subcommand is the same as "wikisync sync".`,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runSync,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c", nil,
		"configuration file; repeat or separate with commas to merge several, later files win")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every wiki operation")
	addSyncFlags(rootCmd)
}

// runError marks a failure that happened after the arguments were accepted.
type runError struct {
	err error
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var re *runError
	if errors.As(err, &re) {
		return exitFailure
	}
	return exitUsage
}

func execute(args []string, stdout, stderr io.Writer) int {
	// cobra reads os.Args when given nil.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// requireConfig is the argument check shared by every command that loads
// the configuration. It runs before usage output is silenced.
func requireConfig(cmd *cobra.Command) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("--config is required")
	}
	cmd.SilenceUsage = true
	return nil
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
