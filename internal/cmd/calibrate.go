package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/fractal"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure the output range of every basis",
	Long: `Sample every basis in 3, 4 and 5 dimensions at random points and write the
calibration table that maps their raw range onto [-0.5, 0.5].

The table can be passed back with --calibration.`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	calibrateCmd.Flags().StringP("out", "o", "calibration.yaml", "Output YAML file")
	calibrateCmd.Flags().Int("samples", 100000, "Sample points per basis and dimension")

	if err := viper.BindPFlag("calibrate.out", calibrateCmd.Flags().Lookup("out")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("calibrate.samples", calibrateCmd.Flags().Lookup("samples")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	out := viper.GetString("calibrate.out")
	samples := viper.GetInt("calibrate.samples")

	if logger == nil {
		initLogging()
	}
	if samples <= 0 {
		return fmt.Errorf("--samples must be positive, got %d", samples)
	}

	logger.Info("Calibrating bases", "samples", samples)
	start := time.Now()
	defaults := fractal.DefaultCalibration()

	cal, err := fractal.CalibrateAll(samples, func(key string, e fractal.Entry) {
		logger.Debug("Calibrated", "key", key, "mid", e.Mid, "fac", e.Fac,
			"default_mid", defaults[key].Mid, "default_fac", defaults[key].Fac)
	})
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	if err := cal.Save(out); err != nil {
		return err
	}
	logger.Info("Wrote calibration", "path", out, "entries", len(cal), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
