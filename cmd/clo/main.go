package main

import (
	"os"

	"corp_finance/cmd/clo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
