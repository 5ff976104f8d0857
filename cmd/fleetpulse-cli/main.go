package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "fleetpulse-cli",
	Short: "FleetPulse CLI - fleet operations monitoring",
	Long: `FleetPulse CLI is a command-line client for the FleetPulse monitoring engine.
It lists current metrics and alerts, acknowledges alerts, and tracks
operational projects across the facility network.`,
}

func init() {
	viper.SetDefault("server", "http://localhost:8080")
	viper.SetEnvPrefix("FLEETPULSE")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", viper.GetString("server"),
		"FleetPulse server URL")

	rootCmd.AddCommand(newDashboardCommand())
	rootCmd.AddCommand(newAlertsCommand())
	rootCmd.AddCommand(newAckCommand())
	rootCmd.AddCommand(newProjectsCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
