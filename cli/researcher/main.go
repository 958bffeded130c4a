package main

import (
	"os"

	researchercmder "github.com/papercomputeco/researcher/cmd/researcher"
)

func main() {
	cmd := researchercmder.NewResearcherCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
