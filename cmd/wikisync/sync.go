package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wikisync/wikisync/internal/config"
	"github.com/wikisync/wikisync/internal/docs"
	"github.com/wikisync/wikisync/internal/fingerprint"
	"github.com/wikisync/wikisync/internal/gateway"
	"github.com/wikisync/wikisync/internal/logging"
	"github.com/wikisync/wikisync/internal/reconcile"
	"github.com/wikisync/wikisync/internal/remote"
	"github.com/wikisync/wikisync/internal/render"
	"github.com/wikisync/wikisync/internal/syncer"
	"github.com/wikisync/wikisync/internal/ui"
	"github.com/wikisync/wikisync/internal/watch"
)

var (
	dryRun       bool
	force        bool
	watchMode    bool
	confirmPrune bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Publish changed documents and prune orphaned pages",
	Long: `Synchronize the document directory to the wiki.

A run has four phases:
  1. Publish the root document onto the parent page
  2. Publish every other changed document as a child page, in parallel
  3. List the current child pages of the parent
  4. Delete child pages that have no local document

If any document fails to publish, every other document is still attempted,
the failures are reported, and no page is deleted.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what sync would change without changing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun = true
		return runSync(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would change without publishing, deleting or writing state")
	cmd.PersistentFlags().BoolVar(&force, "force", false, "republish every document regardless of fingerprints")
	cmd.PersistentFlags().BoolVarP(&watchMode, "watch", "w", false, "keep running and sync again whenever a document or the template changes")
	cmd.PersistentFlags().BoolVar(&confirmPrune, "confirm-prune", false, "ask before deleting remote pages")
}

var phaseTitles = map[syncer.Phase]string{
	syncer.PhaseRoot:      "Publishing root document",
	syncer.PhasePublish:   "Publishing documents",
	syncer.PhaseFetch:     "Fetching remote pages",
	syncer.PhaseReconcile: "Pruning orphaned pages",
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := requireConfig(cmd); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := logging.Open(logging.Options{File: cfg.LogFile, MaxSizeMB: cfg.LogMaxSizeMB, Stderr: cmd.ErrOrStderr()})
	defer out.Close()

	printer := ui.New(cmd.OutOrStdout(), noColor)

	gw, err := newGateway(cfg, out)
	if err != nil {
		return &runError{err}
	}

	runOnce := func(ctx context.Context) error {
		s, err := newSyncer(cfg, gw, out, printer)
		if err != nil {
			return err
		}
		report, err := s.Run(ctx)
		// Only the first run of a watch session is forced.
		force = false
		if report.RootMissing {
			printer.Warn(fmt.Sprintf("Root document %s not found, parent page left unchanged", cfg.RootDocument))
		}
		printer.Summary(ui.Summary{
			DryRun:   report.DryRun,
			Updated:  report.Updated,
			Skipped:  report.Skipped,
			Planned:  report.Planned,
			Deleted:  report.Deleted,
			Failed:   report.Failed,
			Duration: report.Duration,
		})
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !watchMode {
		if err := runOnce(ctx); err != nil {
			printer.Fail(err.Error())
			return &runError{err}
		}
		printer.Pass("Sync complete")
		return nil
	}

	w, err := watch.New(watch.Config{
		Dir:       cfg.MarkdownDir,
		Extension: cfg.MarkdownExtension,
		Files:     []string{cfg.PageTemplate},
		Logger:    out.Logger(logging.ComponentWatch),
	}, runOnce)
	if err != nil {
		return &runError{err}
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return &runError{err}
	}
	return nil
}

// loadConfig loads every --config file. A missing required key names the
// environment variable that can supply it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(appFS, configPaths...)
	if err == nil {
		return cfg, nil
	}
	var cerr *config.Error
	if config.IsMissing(err) && errors.As(err, &cerr) && cerr.Key != "" {
		err = fmt.Errorf("%w (set it in a config file or as %s_%s)", err, config.EnvPrefix, strings.ToUpper(cerr.Key))
	}
	return nil, &runError{err}
}

func newGateway(cfg *config.Config, out *logging.Output) (gateway.Gateway, error) {
	opts := []gateway.FactoryOption{gateway.WithTimeout(cfg.RequestTimeout)}
	if verbose {
		opts = append(opts, gateway.WithOperationLog(out.Logger(logging.ComponentGateway)))
	}

	gw, err := gateway.NewFactory(opts...).Create(gateway.Settings{
		Type:       gateway.Type(cfg.Gateway),
		URL:        cfg.ConfluenceURL,
		Token:      cfg.ConfluenceToken,
		Command:    cfg.CLICommand,
		Connection: cfg.CLIConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s gateway: %w", cfg.Gateway, err)
	}
	return gw, nil
}

// newSyncer loads the template afresh so that watch mode picks up edits.
func newSyncer(cfg *config.Config, gw gateway.Gateway, out *logging.Output, printer *ui.Printer) (*syncer.Syncer, error) {
	renderer, err := render.Load(appFS, cfg.PageTemplate)
	if err != nil {
		return nil, err
	}

	var confirm reconcile.ConfirmFunc
	if confirmPrune {
		confirm = func(orphans []remote.Entry) (bool, error) {
			titles := make([]string, len(orphans))
			for i, e := range orphans {
				titles[i] = e.Title
			}
			return ui.ConfirmDeletion(titles)
		}
	}

	return syncer.New(syncer.Deps{
		Source:   docs.NewSource(appFS, cfg.MarkdownDir, cfg.MarkdownExtension),
		Renderer: renderer,
		Store:    fingerprint.NewStore(appFS, cfg.StateDir),
		Gateway:  gw,
		StateFS:  appFS,
	}, syncer.Options{
		ParentID:     cfg.ParentPageID,
		Space:        cfg.ConfluenceSpace,
		RootDocument: cfg.RootDocument,
		RootTitle:    cfg.RootPageTitle,
		Workers:      cfg.Threads,
		PageSize:     cfg.PageSize,
		DryRun:       dryRun,
		Force:        force,
		Confirm:      confirm,
		OnPhase:      func(p syncer.Phase) { printer.Phase(phaseTitles[p]) },
		LogOutput:    out.Writer(),
	})
}
