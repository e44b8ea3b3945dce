package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ctraysim/pkg/config"
	"ctraysim/pkg/density"
	"ctraysim/pkg/reconstruction"
	"ctraysim/pkg/visualization"
)

var (
	inputPath   string
	outputPath  string
	angles      int
	configFile  string
	numCores    int
	filterMode  string
	partialStep bool
	verbose     bool
	showMetrics bool
	degrees     float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ctraysim",
		Short:         "parallel-beam CT acquisition simulator and backprojection reconstructor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSimulation,
	}

	rootCmd.PersistentFlags().StringVar(&inputPath, "inputPath", "", "path to the input image file")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "ctraysim.yaml", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging and the debug density map")
	rootCmd.PersistentFlags().IntVar(&numCores, "cores", 0, "number of CPU cores to use (default: all available)")
	rootCmd.PersistentFlags().StringVar(&filterMode, "filter", "normalize", "projection filter: normalize or ramp")
	rootCmd.PersistentFlags().BoolVar(&partialStep, "partial-step", false, "weight the last sample of each ray by the remaining distance")

	rootCmd.Flags().StringVar(&outputPath, "outputPath", "output", "output directory where projections will be saved")
	rootCmd.Flags().IntVar(&angles, "angles", 512, "number of angles for simulation")
	rootCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print reconstruction quality metrics")

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "plot the projection of the input at a single angle",
		RunE:  runProfile,
	}
	profileCmd.Flags().Float64Var(&degrees, "degrees", 0, "detector rotation in degrees")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage configuration files",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Printf("Default configuration written to %s\n", path)
			return nil
		},
	}
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(profileCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies explicitly set flags on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("outputPath") {
		cfg.Output.OutputPath = outputPath
	}
	if flags.Changed("angles") {
		cfg.Simulation.Angles = angles
	}
	if flags.Changed("cores") {
		cfg.Simulation.NumCores = numCores
	}
	if flags.Changed("filter") {
		cfg.Reconstruction.Filter = filterMode
	}
	if flags.Changed("partial-step") {
		cfg.Tracer.PartialStep = partialStep
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = verbose
	}
	if flags.Changed("metrics") {
		cfg.Output.Metrics = showMetrics
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the terminal log handler shared by every package
func newLogger(debug bool) *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "ctraysim",
		Level:           log.InfoLevel,
	})
	if debug {
		handler.SetLevel(log.DebugLevel)
	}
	return slog.New(handler)
}

func requireInput() error {
	if inputPath == "" {
		return fmt.Errorf("required flag \"inputPath\" not set")
	}
	return nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	if err := requireInput(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Output.Verbose)
	logger.Info("starting CT simulation",
		"inputPath", inputPath,
		"outputPath", cfg.Output.OutputPath,
		"angles", cfg.Simulation.Angles,
	)

	field, err := density.Load(inputPath, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sim := reconstruction.NewSimulator(field, params, logger)
	start := time.Now()
	result, err := sim.SimulateCT(ctx, cfg.Simulation.Angles)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	opts := visualization.ArtifactOptions{Save16Bit: cfg.Output.Save16Bit}
	if cfg.Output.Verbose && cfg.Output.SaveDebugDensityMap {
		opts.DebugField = field
	}

	viewer := visualization.NewViewer(result, logger)
	saved, err := viewer.SaveArtifacts(cfg.Output.OutputPath, opts)
	if err != nil {
		return err
	}

	fmt.Println(visualization.Summary("CT simulation completed successfully",
		visualization.RunFields(inputPath, field.Size(), cfg.Simulation.Angles,
			cfg.Simulation.NumCores, string(params.Filter), elapsed)))
	for _, path := range saved {
		fmt.Printf("Saved %s\n", path)
	}

	if cfg.Output.Verbose {
		center := field.Size() / 2
		if row, err := viewer.ExtractProfile(visualization.SourceImage, center); err == nil {
			fmt.Println(visualization.ProfilePlot(row, 10, 80, fmt.Sprintf("reconstructed row %d", center)))
		}
	}

	if cfg.Output.Metrics {
		metrics, err := reconstruction.Evaluate(field, result.Image())
		if err != nil {
			return err
		}
		fmt.Println(visualization.Summary("Reconstruction metrics", []visualization.SummaryLine{
			{Label: "RMSE", Value: fmt.Sprintf("%.6f", metrics.RMSE)},
			{Label: "SSIM", Value: fmt.Sprintf("%.3f", metrics.SSIM)},
			{Label: "Mutual information", Value: fmt.Sprintf("%.3f", metrics.MI)},
			{Label: "Entropy difference", Value: fmt.Sprintf("%.3f", metrics.EntropyDiff)},
			{Label: "Correlation", Value: fmt.Sprintf("%.3f", metrics.Correlation)},
		}))
	}

	logger.Info("CT simulation completed successfully")
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	if err := requireInput(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Output.Verbose)
	field, err := density.Load(inputPath, logger)
	if err != nil {
		return err
	}

	sim := reconstruction.NewSimulator(field, params, logger)
	projection := sim.SimulateProjectionForAngle(degrees * math.Pi / 180)

	fmt.Println(visualization.ProfilePlot(projection, 15, 80,
		fmt.Sprintf("projection at %.1f degrees (%d bins)", degrees, len(projection))))
	return nil
}
