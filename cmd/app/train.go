package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"PricePortal/internal/di"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fetch history, fit the scaler, train the model and write both artifacts",
	RunE:  runTrain,
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipeline, cleanup, err := di.InitializeTrainingPipeline(cfg)
	if err != nil {
		return fmt.Errorf("training initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rows=%d train=%d test=%d epochs=%d duration=%s\n",
		report.Rows, report.TrainSamples, report.TestSamples, len(report.History), report.Duration)
	fmt.Fprintf(out, "model saved to %s\nscaler saved to %s\n", cfg.Model.ArtifactPath, cfg.Model.ScalerPath)
	return nil
}
