package main

import (
	"os"

	servecmder "github.com/papercomputeco/researcher/cmd/researcher/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "researcherapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .researcher/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
