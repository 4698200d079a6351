package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"streamhub/internal/content"
	"streamhub/pkg/database"
	"streamhub/pkg/logger"
	"streamhub/pkg/utils"
)

func main() {
	var out, format string

	cmd := &cobra.Command{
		Use:           "export-csv",
		Short:         "Write the content catalog to CSV or a mirror fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := utils.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := database.Open(database.ConfigFor(cfg.DBPath))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(db); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			export := exportContent
			switch format {
			case "csv":
			case "mirror":
				export = exportMirror
			default:
				return fmt.Errorf("unknown format %q (csv or mirror)", format)
			}

			n, err := export(ctx, content.NewRepo(db), f)
			if err != nil {
				return err
			}
			log.Info("exported catalog", "rows", n, "format", format, "path", out)
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&out, "out", "data/content.csv", "output path")
	cmd.Flags().StringVar(&format, "format", "csv", "csv, or mirror for a mirror-server fixture")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "export-csv: %v\n", err)
		os.Exit(1)
	}
}
