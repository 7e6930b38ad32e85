package cmd

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/imageio"
	"github.com/MeKo-Tech/noisesynth/internal/render"
	"github.com/MeKo-Tech/noisesynth/internal/worker"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a noise texture",
	Long: `Render a noise texture to a PNG, TIFF, BMP or JPEG file.

With --source the texture is blended over the input image, or, with the warp
colour source, used to displace it.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	f := renderCmd.Flags()
	f.StringP("out", "o", "noise.png", "Output image; the extension picks the format")
	f.Int("width", 0, "Output width (default: source width or 512)")
	f.Int("height", 0, "Output height (default: source height or 512)")
	f.String("source", "", "Input image to blend over or warp")
	f.Int("thumbnail", 0, "Also write a thumbnail fitting this many pixels")
	f.IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	f.Int("region-size", render.DefaultRegionSize, "Edge length of the regions rendered in parallel")
	f.Bool("progress", true, "Show progress while rendering")
	f.String("save-preset", "", "Write the settings, with the seed used, to this YAML file")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.out", "out"},
		{"render.width", "width"},
		{"render.height", "height"},
		{"render.source", "source"},
		{"render.thumbnail", "thumbnail"},
		{"render.workers", "workers"},
		{"render.region_size", "region-size"},
		{"render.progress", "progress"},
		{"render.save_preset", "save-preset"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, f.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	out := viper.GetString("render.out")
	width := viper.GetInt("render.width")
	height := viper.GetInt("render.height")
	sourcePath := viper.GetString("render.source")
	thumbSize := viper.GetInt("render.thumbnail")
	workers := workerCount(viper.GetInt("render.workers"))
	regionSize := viper.GetInt("render.region_size")
	showProgress := viper.GetBool("render.progress")
	presetPath := viper.GetString("render.save_preset")

	if logger == nil {
		initLogging()
	}

	if _, err := imageio.FormatFromPath(out); err != nil {
		return err
	}

	st, settings, err := loadState()
	if err != nil {
		return err
	}
	cal, err := loadCalibration()
	if err != nil {
		return err
	}

	var source image.Image
	if sourcePath != "" {
		if source, err = imageio.Load(sourcePath); err != nil {
			return err
		}
		b := source.Bounds()
		if width <= 0 {
			width = b.Dx()
		}
		if height <= 0 {
			height = b.Dy()
		}
		if b.Dx() != width || b.Dy() != height {
			logger.Info("Resampling source to output size", "from", b.Size(), "to", image.Pt(width, height))
			source = imageio.Fit(source, width, height)
		}
	}
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}

	regions := len(worker.Split(image.Rect(0, 0, width, height), regionSize))
	progress := worker.NewProgress(regions, "regions", showProgress)

	logger.Info("Rendering noise",
		"size", fmt.Sprintf("%dx%d", width, height),
		"basis", st.Basis,
		"fractal", st.Fractal,
		"mapping", st.Mapping,
		"regions", regions,
		"workers", workers,
	)

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	img, err := render.RenderImage(ctx, render.Job{
		Settings:    settings,
		Calibration: cal,
		Width:       width,
		Height:      height,
		Source:      source,
		RegionSize:  regionSize,
		Workers:     workers,
		OnProgress:  progress.Callback(),
	})
	progress.Done()
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	logger.Info(progress.Summary())

	if err := imageio.Save(out, img); err != nil {
		return err
	}
	logger.Info("Wrote image", "path", out, "elapsed", time.Since(start).Round(time.Millisecond))

	if thumbSize > 0 {
		thumbPath := thumbnailPath(out)
		if err := imageio.Save(thumbPath, imageio.Thumbnail(img, thumbSize)); err != nil {
			return err
		}
		logger.Info("Wrote thumbnail", "path", thumbPath)
	}

	if presetPath != "" {
		if err := config.Save(presetPath, st); err != nil {
			return err
		}
		logger.Info("Saved preset", "path", presetPath, "seed", st.Seed)
	}
	return nil
}

// thumbnailPath inserts "_thumb" before the extension.
func thumbnailPath(out string) string {
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + "_thumb" + ext
}
