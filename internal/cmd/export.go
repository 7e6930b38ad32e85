package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/mbtiles"
	"github.com/MeKo-Tech/noisesynth/internal/render"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
	"github.com/MeKo-Tech/noisesynth/internal/worker"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export noise as web map tiles",
	Long: `Render the noise field as 256px XYZ tiles covering a bounding box and zoom
range, and store them in an MBTiles database.

The feature size scales with the zoom level, so the pattern stays in place
geographically while zooming.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.String("bbox", "-180,-85.0511,180,85.0511", "Bounding box: minLon,minLat,maxLon,maxLat")
	f.Int("zoom-min", 0, "Minimum zoom level")
	f.Int("zoom-max", 3, "Maximum zoom level")
	f.StringP("out", "o", "noise.mbtiles", "Output MBTiles file")
	f.String("name", "noise", "Tileset name stored in the metadata")
	f.IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	f.Bool("progress", true, "Show progress bar")
	f.Bool("allow-failures", false, "Keep the tileset even if some tiles fail")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"export.bbox", "bbox"},
		{"export.zoom_min", "zoom-min"},
		{"export.zoom_max", "zoom-max"},
		{"export.out", "out"},
		{"export.name", "name"},
		{"export.workers", "workers"},
		{"export.progress", "progress"},
		{"export.allow_failures", "allow-failures"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, f.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	bboxStr := viper.GetString("export.bbox")
	zoomMin := viper.GetInt("export.zoom_min")
	zoomMax := viper.GetInt("export.zoom_max")
	out := viper.GetString("export.out")
	name := viper.GetString("export.name")
	workers := workerCount(viper.GetInt("export.workers"))
	showProgress := viper.GetBool("export.progress")
	allowFailures := viper.GetBool("export.allow_failures")

	if logger == nil {
		initLogging()
	}

	bbox, err := parseBBox(bboxStr)
	if err != nil {
		return fmt.Errorf("invalid bbox: %w", err)
	}
	if err := validateZoomRange(zoomMin, zoomMax); err != nil {
		return err
	}

	st, settings, err := loadState()
	if err != nil {
		return err
	}
	if settings.ColorSource == config.ColorWarp {
		return fmt.Errorf("the warp colour source cannot be exported as tiles")
	}
	cal, err := loadCalibration()
	if err != nil {
		return err
	}

	preset, err := config.Encode(st)
	if err != nil {
		return err
	}
	meta := mbtiles.NewMetadata(name, bbox, zoomMin, zoomMax)
	meta.Description = fmt.Sprintf("%s %s noise, %g octaves, seed %d", st.Basis, st.Fractal, st.Octaves, st.Seed)
	meta.Preset = string(preset)

	coords := tile.TilesInBBox(bbox, zoomMin, zoomMax)
	tasks := make([]worker.Task, len(coords))
	for i, c := range coords {
		tasks[i] = worker.Task{Coords: c}
	}

	logger.Info("Starting tile export",
		"bbox", bboxStr,
		"zoom_range", fmt.Sprintf("%d-%d", zoomMin, zoomMax),
		"tiles", len(tasks),
		"workers", workers,
		"output", out,
	)

	w, err := mbtiles.Create(out, meta)
	if err != nil {
		return fmt.Errorf("failed to create MBTiles writer: %w", err)
	}
	defer w.Close()

	ctx, cancel := signalContext()
	defer cancel()

	progress := worker.NewProgress(len(tasks), "tiles", showProgress)
	var failed int
	var writeErr error

	pool := worker.New(worker.Config{
		Workers: workers,
		NewGenerator: func() (worker.Generator, error) {
			return render.NewTileGenerator(settings, cal)
		},
		OnProgress: progress.Callback(),
		OnResult: func(r worker.Result) {
			if r.Err != nil {
				failed++
				logger.Error("Tile generation failed", "coords", r.Task.Coords.String(), "error", r.Err)
				return
			}
			if writeErr != nil {
				return
			}
			if err := w.WriteImage(r.Task.Coords, r.Image); err != nil {
				writeErr = err
				cancel()
			}
		},
	})

	pool.Run(ctx, tasks)
	progress.Done()
	logger.Info(progress.Summary())

	if writeErr != nil {
		return fmt.Errorf("failed to store tiles: %w", writeErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export cancelled: %w", err)
	}
	if failed > 0 {
		if !allowFailures {
			return fmt.Errorf("%d tiles failed to generate", failed)
		}
		logger.Warn("Some tiles failed to generate, but continuing due to --allow-failures flag", "failed_count", failed)
	}

	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("MBTiles export complete", "path", out, "tiles", w.Written())
	return nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var bbox [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		bbox[i] = val
	}

	if err := tile.ValidateBBox(bbox); err != nil {
		return [4]float64{}, err
	}
	return bbox, nil
}

func validateZoomRange(zoomMin, zoomMax int) error {
	if zoomMin < 0 || zoomMax > tile.MaxZoom {
		return fmt.Errorf("zoom range %d-%d outside 0-%d", zoomMin, zoomMax, tile.MaxZoom)
	}
	if zoomMin > zoomMax {
		return fmt.Errorf("--zoom-min (%d) must be <= --zoom-max (%d)", zoomMin, zoomMax)
	}
	return nil
}
