package main

import (
	"os"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
