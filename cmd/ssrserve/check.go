package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/3-lines-studio/ssrserve/internal/adapters/cli"
	"github.com/3-lines-studio/ssrserve/internal/adapters/fs"
	"github.com/3-lines-studio/ssrserve/internal/usecase"
)

var errCheckFailed = errors.New("production build is not ready")

func checkCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the production build without starting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			out := cli.NewOutput()
			out.PrintHeader("ssrserve check")
			report := usecase.CheckProject(usecase.CheckInput{
				FS:           fs.NewOSFileSystem(),
				TemplatePath: cfg.ClientTemplatePath(),
				ManifestPath: cfg.ManifestPath(),
				ServerEntry:  cfg.Path(cfg.ServerEntry),
			})
			out.PrintReport(report)

			if report.Failed() {
				return errCheckFailed
			}
			return nil
		},
	}
}
