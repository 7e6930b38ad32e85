package config

import (
	"fmt"
	"slices"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/mapping"
	"github.com/MeKo-Tech/noisesynth/internal/tone"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

// NameTable lists the accepted names of each enumerated setting.
type NameTable struct {
	Basis       []string `json:"basis"`
	Fractal     []string `json:"fractal"`
	Mapping     []string `json:"mapping"`
	Function    []string `json:"function"`
	ColorSource []string `json:"color_source"`
	Channel     []string `json:"channel"`
	Quality     []string `json:"quality"`
	Edge        []string `json:"edge"`
}

// Names returns the name tables.
func Names() NameTable {
	return NameTable{
		Basis:       names(basis.Kinds()),
		Fractal:     names(fractal.Kinds()),
		Mapping:     names(mapping.Modes()),
		Function:    names(tone.Functions()),
		ColorSource: slices.Clone(colorSourceNames),
		Channel:     slices.Clone(channelSourceNames),
		Quality:     names([]warp.Quality{warp.Faster, warp.Better}),
		Edge:        names(warp.EdgeModes()),
	}
}

func names[T fmt.Stringer](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
