package main

import (
	"os"

	"github.com/joho/godotenv"

	"eve-hubcompare/internal/cli"
)

func main() {
	// A missing .env is fine; settings may come from the config file or the environment.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
