package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grants-cloud/internal/auth"
	"grants-cloud/internal/budget/application"
	"grants-cloud/internal/budget/infrastructure/memory"
	"grants-cloud/internal/budget/infrastructure/snapshot"
	"grants-cloud/internal/budget/interfaces/report"
	"grants-cloud/internal/config"
	"grants-cloud/internal/eventbus"
	"grants-cloud/internal/logging"
)

var reportOpts struct {
	grantID  string
	format   string
	out      string
	snapshot string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a grant report from a snapshot file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Format)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		format, ok := application.ParseFormat(reportOpts.format)
		if !ok {
			return fmt.Errorf("unsupported format %q", reportOpts.format)
		}
		path := reportOpts.snapshot
		if path == "" {
			path = cfg.Snapshot.File
		}
		store, err := snapshot.NewFileStore(path)
		if err != nil {
			return err
		}
		snap, err := store.Load(cmd.Context())
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return fmt.Errorf("no snapshot at %s", path)
		}
		if err != nil {
			return err
		}
		repo := memory.NewRepository()
		repo.Restore(snap)

		services, err := application.NewServices(application.Deps{
			Repo:   repo,
			Bus:    eventbus.NewInMemoryBus(logger),
			Logger: logger,
		}, report.NewRenderer(report.WithOrganization(cfg.Report.Organization)))
		if err != nil {
			return err
		}
		ctx := auth.WithIdentity(cmd.Context(), auth.Identity{
			Subject:  "cli",
			FullName: "grants-cloud report",
			Role:     auth.RoleAdmin,
		})
		data, err := services.Reports.ExportGrantReport(ctx, reportOpts.grantID, format)
		if err != nil {
			return err
		}

		out := reportOpts.out
		if out == "" {
			out = fmt.Sprintf("grant-%s.%s", reportOpts.grantID, format)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", out), zap.Int("bytes", len(data)))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOpts.grantID, "grant", "", "grant id")
	reportCmd.Flags().StringVar(&reportOpts.format, "format", "pdf", "pdf or xlsx")
	reportCmd.Flags().StringVar(&reportOpts.out, "out", "", "output file (default grant-<id>.<format>)")
	reportCmd.Flags().StringVar(&reportOpts.snapshot, "snapshot", "", "snapshot file (default snapshot.file)")
	_ = reportCmd.MarkFlagRequired("grant")
}
