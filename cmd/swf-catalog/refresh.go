package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kode4food/swfcatalog/internal/catalog"
	"github.com/kode4food/swfcatalog/internal/config"
	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
)

func newRefreshCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch workflows once and print the generated templates",
		Long: "Fetch the runtime's interface description once and print " +
			"the generated scaffolder templates as YAML documents. With " +
			"--apply the snapshot is also written to the catalog store " +
			"and archive.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the YAML documents
			logger := setupLogging(cfg, cmd.ErrOrStderr())
			return runRefresh(
				cmd.Context(), cfg, logger, apply, cmd.OutOrStdout(),
			)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false,
		"write the snapshot to the catalog store and archive")
	return cmd
}

func runRefresh(
	ctx context.Context, cfg *config.Config, logger *slog.Logger,
	apply bool, out io.Writer,
) error {
	rd, closeReader, err := newReader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeReader() }()

	p, err := newProvider(cfg, rd, nil, logger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateProvider, err)
	}

	m, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}

	if apply {
		s, err := openSinks(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		conn := catalog.Connect(p.GetProviderName(), s.list()...)
		if err := conn.ApplyMutation(ctx, m); err != nil {
			return err
		}
		logger.Info("Snapshot applied",
			log.Provider(p.GetProviderName()),
			log.MutationID(m.ID),
			slog.Int("count", len(m.Entities)))
	}

	return writeTemplates(out, m)
}

func writeTemplates(out io.Writer, m *api.Mutation) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	for _, e := range m.Entities {
		if err := enc.Encode(e.Entity); err != nil {
			return err
		}
	}
	return enc.Close()
}
