package main

import (
	"os"

	preparecmder "github.com/papercomputeco/researcher/cmd/prepare"
)

func main() {
	cmd := preparecmder.NewPrepareCmd()
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .researcher/ config directory")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
