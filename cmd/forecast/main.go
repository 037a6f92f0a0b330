// Command forecast runs the demand and price forecasting services:
// an HTTP server for online inference, a batch scorer for CSV files,
// and an offline evaluation tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "forecast",
	Short:   "Demand and price forecasting services",
	Version: version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demandCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(evaluateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
