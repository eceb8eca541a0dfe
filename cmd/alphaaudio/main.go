package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "alphaaudio",
	Short: "AlphaAudio - car audio build simulator",
	Long: `AlphaAudio runs a car audio build through a chain of model roles:
an Architect designs the enclosure, Structural and Thermal analysts review
it, and a Core verdict synthesizes the three reports. A Gear Lab recommends
equipment from local catalogs.

Run "alphaaudio serve" to start the web interface.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $ALPHAAUDIO_CONFIG or ~/.config/alphaaudio/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(reportsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
