package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "noisesynth",
	Short: "A procedural noise texture synthesiser",
	Long: `NoiseSynth renders fractal noise textures from lattice, sparse
convolution and cellular basis functions.

Textures can be planar, seamlessly tileable or wrapped onto a sphere, shaped
with tone curves, coloured, used to warp an input image, or exported as web
map tiles.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	pf.Bool("verbose", false, "Enable verbose logging")
	pf.String("calibration", "", "YAML file overriding the basis calibration table")

	// The most used noise settings have flags; everything else comes from
	// the config file or NOISESYNTH_NOISE_* variables.
	pf.Uint32("seed", 0, "Noise seed (implies --random-seed=false)")
	pf.Bool("random-seed", true, "Draw a new seed for every run")
	pf.String("basis", "lattice_noise", "Basis function (see 'noisesynth bases')")
	pf.String("fractal", "fbm", "Fractal type: fbm, multifractal, inv_multifractal")
	pf.String("mapping", "planar", "Mapping: planar, tileable, spherical")
	pf.Float64("octaves", 3, "Number of octaves, may be fractional")
	pf.Float64("size", 10, "Feature size in pixels (both axes)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"verbose", "verbose"},
		{"calibration", "calibration"},
		{config.Key + ".seed", "seed"},
		{config.Key + ".random_seed", "random-seed"},
		{config.Key + ".basis", "basis"},
		{config.Key + ".fractal", "fractal"},
		{config.Key + ".mapping", "mapping"},
		{config.Key + ".octaves", "octaves"},
		{config.Key + ".size_x", "size"},
		{config.Key + ".size_y", "size"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, pf.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NOISESYNTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// an explicit --seed fixes the seed
	if f := rootCmd.PersistentFlags().Lookup("seed"); f != nil && f.Changed {
		viper.Set(config.Key+".random_seed", false)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
