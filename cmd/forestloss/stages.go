package main

import (
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/csvfile"
	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/excel"
	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/gdal"
	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/forest-loss-pipeline/internal/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Convert the catalog workbook into the cleaned site table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean(cmd.Context())
	},
}

var countiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "Extract the configured counties from the boundary layer into a GeoPackage",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := pipeline.NewCountySubset(gdal.NewBoundaryExtractor(logger), cfg.Boundary, logger, metrics)
		_, err := s.Run(cmd.Context())
		return err
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Sample tree cover and loss year at every cleaned site",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(cmd.Context())
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the loss-year classifier and print its classification reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd.Context(), cmd.OutOrStdout())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run clean, join and train in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runClean(cmd.Context()); err != nil {
			return err
		}
		if err := runJoin(cmd.Context()); err != nil {
			return err
		}
		return runTrain(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd, countiesCmd, joinCmd, trainCmd, runCmd)
}

func runClean(ctx context.Context) error {
	c := pipeline.NewCleaner(
		excel.NewWorkbook(cfg.Catalog.Path, cfg.Catalog.Sheets(), logger),
		csvfile.NewCleanedTable(cfg.Catalog.CleanedPath, logger),
		logger, metrics,
	)
	_, err := c.Run(ctx)
	return err
}

func runJoin(ctx context.Context) error {
	treeCover, err := gdal.OpenRaster(cfg.Join.TreeCoverRaster, cfg.Join.TreeCoverBand, logger)
	if err != nil {
		return err
	}
	defer closeLogged(treeCover, "tree cover raster")

	lossYear, err := gdal.OpenRaster(cfg.Join.LossYearRaster, cfg.Join.LossYearBand, logger)
	if err != nil {
		return err
	}
	defer closeLogged(lossYear, "loss year raster")

	loaders := []pipeline.JoinedLoader{csvfile.NewJoinedTable(cfg.Join.JoinedPath, logger)}
	if cfg.Kafka.Enabled {
		w := kafka.NewWriter(cfg.Kafka, uuid.NewString(), logger)
		defer closeLogged(w, "kafka writer")
		loaders = append(loaders, w)
	}

	j := pipeline.NewJoiner(
		csvfile.NewCleanedTable(cfg.Catalog.CleanedPath, logger),
		treeCover, lossYear,
		cfg.Join.Counties,
		logger, metrics,
		loaders...,
	)
	_, err = j.Run(ctx)
	return err
}

func runTrain(ctx context.Context, out io.Writer) error {
	t := pipeline.NewTrainer(csvfile.NewJoinedTable(cfg.Join.JoinedPath, logger), cfg.Train, logger, metrics)
	res, err := t.Run(ctx)
	if err != nil {
		return err
	}
	if err := res.WriteReport(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func closeLogged(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logger.Error("close failed", "resource", what, "error", err)
	}
}
