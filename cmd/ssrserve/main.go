package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/3-lines-studio/ssrserve"
	"github.com/3-lines-studio/ssrserve/internal/logging"
)

type flags struct {
	port     int
	base     string
	logLevel string
}

func (f *flags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().IntVar(&f.port, "port", 5173, "listen port (env PORT)")
	cmd.PersistentFlags().StringVar(&f.base, "base", "/", "base path stripped from request URLs (env BASE)")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error (env LOG_LEVEL)")
}

// load reads the environment and lets explicitly set flags win.
func (f *flags) load(cmd *cobra.Command) (ssrserve.Config, error) {
	cfg, err := ssrserve.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = f.port
	}
	if cmd.Flags().Changed("base") {
		cfg.Base = f.base
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	return cfg, cfg.Normalize()
}

func rootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "ssrserve",
		Short:         "Server-side rendering for Vite projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	f.register(root)

	root.AddCommand(
		serveCommand(f),
		checkCommand(f),
		versionCommand(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ssrserve: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	_, err := logging.Setup(level)
	return err
}
