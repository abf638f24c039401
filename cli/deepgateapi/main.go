package main

import (
	"os"

	apicmder "github.com/papercomputeco/deepgate/cmd/deepgate/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "deepgateapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .deepgate/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
