package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lazypower/claimgate/internal/cli"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
