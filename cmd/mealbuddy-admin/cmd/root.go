// Package cmd contains all CLI commands for mealbuddy-admin.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

var configFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mealbuddy-admin",
	Short: "Operator tool for the MealBuddy backend",
	Long: `mealbuddy-admin works directly against the configuration and the database
of a MealBuddy deployment. It reads the same configuration file, .env file and
environment variables as the server.

Examples:
  # Print the resolved configuration
  mealbuddy-admin config show

  # Create or upgrade the database schema
  mealbuddy-admin migrate up --config /etc/mealbuddy/config.yaml

Environment Variables:
  MEALBUDDY_CONFIG  Configuration file (default: configs/config.yaml)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", getEnvOrDefault("MEALBUDDY_CONFIG", "configs/config.yaml"), "Configuration file")
}

// loadConfig loads and resolves the configuration named by --config.
func loadConfig() (*config.Config, error) {
	base, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return config.Resolve(base)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
