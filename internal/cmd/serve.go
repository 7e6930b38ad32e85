package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve noise previews and on-demand map tiles",
	Long: `Start an HTTP server exposing the configured noise:

  GET /health
  GET /api/v1/bases           accepted setting names
  GET /api/v1/status          render activity
  GET /api/v1/preview.png     preview; query parameters override settings
  GET /tiles/{z}/{x}/{y}.png  on-demand XYZ tiles
  GET /mbtiles/{z}/{x}/{y}.png tiles of an exported tileset (with --mbtiles)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	f.Int("max-concurrent", runtime.NumCPU(), "Max concurrent tile renders and previews")
	f.Int("preview-max", 1024, "Largest preview edge in pixels")
	f.Duration("timeout", 2*time.Minute, "Timeout per request")
	f.String("cache-control", "no-store", "Cache-Control header for served images")
	f.String("mbtiles", "", "Exported MBTiles file to serve under /mbtiles")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"serve.addr", "addr"},
		{"serve.max_concurrent", "max-concurrent"},
		{"serve.preview_max", "preview-max"},
		{"serve.timeout", "timeout"},
		{"serve.cache_control", "cache-control"},
		{"serve.mbtiles", "mbtiles"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, f.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := viper.GetString("serve.addr")

	if logger == nil {
		initLogging()
	}

	st, _, err := loadState()
	if err != nil {
		return err
	}
	cal, err := loadCalibration()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		State:          st,
		Calibration:    cal,
		MaxConcurrent:  viper.GetInt("serve.max_concurrent"),
		MaxPreviewSize: viper.GetInt("serve.preview_max"),
		RequestTimeout: viper.GetDuration("serve.timeout"),
		CacheControl:   viper.GetString("serve.cache_control"),
		MBTilesPath:    viper.GetString("serve.mbtiles"),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Open in browser", "url", "http://"+addr+"/api/v1/preview.png")
	return srv.Run(ctx, addr)
}
