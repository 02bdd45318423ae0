package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/cvewatch/internal/app"
	"github.com/lcalzada-xor/cvewatch/internal/config"
	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/audit"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	cfg            *config.Config
	log            *logger.Logger
	shutdownTracer func(context.Context) error
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "cvewatch",
		Short:         "Match published CVEs against subscriptions and notify subscribers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}
	c.cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		c.serveCmd(),
		c.runOnceCmd(),
		c.repairCmd(),
		c.importCatalogCmd(),
		c.importCategoryCmd(),
		c.keysCmd(),
		c.userCmd(),
		c.categoryCmd(),
		c.subscribeCmd(true),
		c.subscribeCmd(false),
	)
	return root
}

func (c *cli) setup() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(c.cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.log = log

	shutdown, err := telemetry.InitTracer(telemetry.TracerOptions{
		Enabled:     c.cfg.Tracing,
		SampleRatio: c.cfg.TraceSampleRatio,
		Writer:      os.Stderr,
	})
	if err != nil {
		c.log.Error("failed to init tracer", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	c.shutdownTracer = shutdown
	return nil
}

func (c *cli) teardown() {
	if c.shutdownTracer != nil {
		if err := c.shutdownTracer(context.Background()); err != nil {
			c.log.Error("failed to shutdown tracer", "error", err)
		}
	}
	if c.log != nil {
		c.log.Sync()
	}
}

// withApp bootstraps the application around fn and closes it afterwards.
func (c *cli) withApp(fn func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := app.New(c.cfg, c.log)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				c.log.Warn("close application", "error", err)
			}
		}()
		return fn(audit.WithSource(cmd.Context(), domain.SourceCLI), a, cmd, args)
	}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			c.log.Info("cvewatch starting", "addr", c.cfg.Addr, "interval", c.cfg.Interval)
			return a.Run(ctx)
		}),
	}
}

func (c *cli) runOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run (or resume) a single notification cycle",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.Application, cmd *cobra.Command, args []string) error {
			report, err := a.Orchestrator.RunCycle(ctx)
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
			}
			return err
		}),
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
