package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fishlog/config"
)

// app carries the loaded configuration to every subcommand.
type app struct {
	cfg    config.Config
	dbPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fishlog",
		Short: "Fishing logbook with moon phase and weather",
		Long: `fishlog records fishing trips and catches. Every catch is stamped with
the moon phase and, when a GPS position is known, the current weather.

Run "fishlog bot" to serve the Telegram chat, or use the subcommands directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.DBPath = a.dbPath
			}
			a.cfg = cfg
			return setupLogging(cfg.LogDir)
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database file (overrides DB_PATH)")

	root.AddCommand(
		a.botCmd(),
		a.moonCmd(),
		a.tripCmd(),
		a.catchCmd(),
		a.exportCmd(),
		a.backupCmd(),
		a.restoreCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Println("ERROR:", err)
		stop()
		os.Exit(1)
	}
}
