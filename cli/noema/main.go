package main

import (
	"os"

	noemacmder "github.com/poucet/noema-sub001/cmd/noema"
)

func main() {
	cmd := noemacmder.NewNoemaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
