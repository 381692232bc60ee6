package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kode4food/swfcatalog"
	"github.com/kode4food/swfcatalog/pkg/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Command failed", log.Error(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swf-catalog",
		Short:         "Sync serverless workflows into the developer catalog",
		Version:       swfcatalog.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newRefreshCmd())
	return cmd
}
