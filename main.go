package main

import (
	"os"

	"go.aimuz.me/ghostwriter/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
