package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
)

// loadState reads the noise settings, draws a seed when asked to, and
// resolves them. The returned state has a fixed seed.
func loadState() (config.State, config.Settings, error) {
	st, err := config.Load(viper.GetViper())
	if err != nil {
		return config.State{}, config.Settings{}, err
	}

	random := st.RandomSeed
	st = st.Seeded(rand.Uint32)
	if random {
		logger.Info("Using random seed", "seed", st.Seed)
	}

	if err := st.Validate(); err != nil {
		return config.State{}, config.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	settings, err := st.Resolve()
	if err != nil {
		return config.State{}, config.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}

	logger.Debug("Resolved settings",
		"basis", settings.Basis,
		"fractal", settings.Fractal,
		"mapping", settings.Mapping,
		"dim", settings.Dim(),
		"color_source", settings.ColorSource,
	)
	return st, settings, nil
}

func loadCalibration() (fractal.Calibration, error) {
	path := viper.GetString("calibration")
	cal, err := fractal.LoadCalibration(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Info("Loaded calibration overrides", "path", path)
	}
	return cal, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func workerCount(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
