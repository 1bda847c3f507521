package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "findapi",
	Short:         "Discover API endpoints hidden in web content",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newCrawlCmd(), newRulesCmd())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "findapi: %v\n", err)
		os.Exit(1)
	}
}
