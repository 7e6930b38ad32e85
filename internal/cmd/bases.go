package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/noisesynth/internal/config"
)

var basesJSON bool

var basesCmd = &cobra.Command{
	Use:   "bases",
	Short: "List the accepted names of every enumerated setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printNames(cmd.OutOrStdout(), config.Names(), basesJSON)
	},
}

func init() {
	rootCmd.AddCommand(basesCmd)
	basesCmd.Flags().BoolVar(&basesJSON, "json", false, "Print JSON")
}

func printNames(w io.Writer, n config.NameTable, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	}

	rows := []struct {
		label string
		names []string
	}{
		{"basis", n.Basis},
		{"fractal", n.Fractal},
		{"mapping", n.Mapping},
		{"function", n.Function},
		{"color_source", n.ColorSource},
		{"channels", n.Channel},
		{"warp.quality", n.Quality},
		{"warp.edge", n.Edge},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-13s %s\n", r.label+":", strings.Join(r.names, ", ")); err != nil {
			return err
		}
	}
	return nil
}
