package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"cipherarena/cmd/arenad/cmd"
)

func main() {
	// A missing .env is normal; only a malformed one is fatal.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}
