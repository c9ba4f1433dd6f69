package main

import (
	"os"

	"github.com/hadi77ir/go-docpager/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	findCmd := cli.NewFindCommand()
	rootCmd.AddCommand(findCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
