package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

const redacted = "REDACTED"

var showSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	Long: `Print the configuration the server would run with, after defaults, the
configuration file, environment variables and fallbacks are applied.
Secrets are redacted unless --show-secrets is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !showSecrets {
			redact(cfg)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets in clear")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func redact(cfg *config.Config) {
	if cfg.JWT.Secret != "" {
		cfg.JWT.Secret = redacted
	}
	cfg.Database.URL = redactURL(cfg.Database.URL)
	cfg.Realtime.MessageQueue = redactURL(cfg.Realtime.MessageQueue)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
