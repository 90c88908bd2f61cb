package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/adapter/objectstore"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/event"
	"github.com/heartmarshall/eventsync/internal/service/export"
)

var (
	exportFormat string
	exportOut    string
	exportS3     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export upcoming canonical events as an ICS feed or JSONL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name := exportFormat
		if name == "" {
			name = cfg.Export.Format
		}
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}

		pool, err := postgres.NewPool(ctx, cfg.Database.DSN, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		svc := export.NewService(logger, event.New(pool))

		if exportS3 {
			dest, err := objectstore.NewS3Destination(ctx, cfg.Export.S3Bucket, cfg.Export.S3Key, cfg.Export.S3Region, cfg.Export.S3Endpoint)
			if err != nil {
				return err
			}
			_, err = svc.Upload(ctx, format, dest)
			return err
		}

		if exportOut == "" || exportOut == "-" {
			_, err = svc.WriteTo(ctx, format, cmd.OutOrStdout())
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		n, err := svc.WriteTo(ctx, format, f)
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", exportOut, closeErr)
		}
		if err != nil {
			return err
		}
		logger.Info("export written", slog.String("path", exportOut), slog.Int("events", n))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "ics or jsonl (default export.format)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	exportCmd.Flags().BoolVar(&exportS3, "s3", false, "upload to export.s3_bucket/export.s3_key instead of writing locally")
}
