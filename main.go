package main

import "github.com/MeKo-Tech/noisesynth/internal/cmd"

func main() {
	cmd.Execute()
}
