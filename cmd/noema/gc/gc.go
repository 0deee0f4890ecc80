// Package gccmder provides the gc command for sweeping unreferenced content
// blocks, either once or as a periodic daemon.
package gccmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/poucet/noema-sub001/pkg/cliui"
	"github.com/poucet/noema-sub001/pkg/config"
	"github.com/poucet/noema-sub001/pkg/dotdir"
	eventbackend "github.com/poucet/noema-sub001/pkg/eventstream/backend"
	"github.com/poucet/noema-sub001/pkg/gc"
	"github.com/poucet/noema-sub001/pkg/logger"
	"github.com/poucet/noema-sub001/pkg/storage/backend"
)

const gcLongDesc string = `Sweep content blocks no message, revision, or collection item references.

Blocks survive a grace window after creation before becoming eligible, so
content interned ahead of the message that references it is never collected.
With --daemon the sweep repeats on the configured interval until interrupted.

Examples:
  noema gc
  noema gc --gc-grace 1h
  noema gc --daemon`

const gcShortDesc string = "Sweep unreferenced content blocks"

type GCCommander struct {
	configDir string
	grace     string
	interval  string
	daemon    bool
	debug     bool

	v *viper.Viper
}

func NewGCCmd() *cobra.Command {
	cmder := &GCCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "gc",
		Short: gcShortDesc,
		Long:  gcLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, fs, []string{
				config.FlagGCGrace,
				config.FlagGCInterval,
			})

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagGCGrace, &cmder.grace)
	config.AddStringFlag(cmd, fs, config.FlagGCInterval, &cmder.interval)
	cmd.Flags().BoolVar(&cmder.daemon, "daemon", false, "Sweep periodically until interrupted")

	return cmd
}

func (c *GCCommander) run(ctx context.Context) error {
	manager := dotdir.NewManager()
	dir, err := manager.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving noema directory: %w", err)
	}

	cfg := config.FromViper(c.v)

	log := logger.New(logger.WithDebug(c.debug))

	driver, err := backend.Open(ctx, cfg, dir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer driver.Close()

	publisher, err := eventbackend.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer publisher.Close()

	sweeper := gc.NewSweeper(driver,
		gc.WithGrace(cfg.GCGrace()),
		gc.WithLogger(log),
		gc.WithPublisher(publisher),
	)

	if c.daemon {
		return c.runDaemon(ctx, sweeper, cfg)
	}

	var report gc.Report
	err = cliui.Step(os.Stdout, "sweeping content blocks", func() error {
		var sweepErr error
		report, sweepErr = sweeper.Sweep(ctx)
		return sweepErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s  %d\n", cliui.KeyStyle.Render("Scanned: "), report.Scanned)
	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Swept:   "), report.Swept)
	fmt.Printf("  %s  %d\n\n", cliui.KeyStyle.Render("Retained:"), report.Retained)

	return nil
}

func (c *GCCommander) runDaemon(ctx context.Context, sweeper *gc.Sweeper, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := gc.NewRunner(sweeper, cfg.GCInterval())

	fmt.Printf("  sweeping every %s, Ctrl-C to stop\n", cfg.GCInterval())

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}
