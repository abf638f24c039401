package main

import (
	"os"

	deepgatecmder "github.com/papercomputeco/deepgate/cmd/deepgate"
)

func main() {
	cmd := deepgatecmder.NewDeepgateCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
