package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gearhaus/market-runtime/internal/app"
	"github.com/gearhaus/market-runtime/internal/config"
	"github.com/gearhaus/market-runtime/internal/tui"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "market-runtime",
		Short: "Market Runtime is the offline-tolerant marketplace client runtime",
	}

	root.AddCommand(newRunCommand(logger))
	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newSyncCommand(logger))
	root.AddCommand(newImportCommand(logger))
	root.AddCommand(newVersionCommand())

	return root
}

// newRunCommand starts the full runtime with the terminal client in
// the foreground. Background services stop when the client exits.
func newRunCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the terminal client with background sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			background := make(chan error, 1)
			go func() {
				background <- runtime.Run(ctx)
			}()

			uiErr := tui.Run(runtime, cfg, logger)
			cancel()
			if err := <-background; err != nil {
				logger.Error("background services stopped", "error", err)
			}
			return uiErr
		},
	}
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run sync, push, and import services without the terminal client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newSyncCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the pending write ledger once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			report := runtime.Worker().RunOnce(ctx)
			cmd.Printf("synced %d, failed %d, evicted %d, remaining %d\n",
				report.Succeeded, report.Failed, report.Evicted, runtime.Ledger().Len())
			if report.AuthExpired {
				cmd.Println("session expired, sign in again to resume syncing")
			}
			return nil
		},
	}
}

func newImportCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file...]",
		Short: "Import vehicle listing files into the local catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			for _, path := range args {
				if err := runtime.Orchestrator().ImportInventoryFile(ctx, path); err != nil {
					return err
				}
				cmd.Printf("imported %s\n", path)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
