package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/antihoax/internal/config"
)

var configInitPath string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Antihoax configuration",
	Long: `Manage Antihoax configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (ANTIHOAX_*, plus DEEPSEEK_API_KEY, PORT, ...)
3. .env file in the working directory
4. Config file (./config.yaml or ~/.antihoax/config.yaml)
5. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  `Display the effective configuration after merging defaults, config file and environment. API keys are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgUsed != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", cfgUsed)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults and environment)\n\n")
		}

		shown := *cfg
		if shown.AI.APIKey != "" {
			shown.AI.APIKey = "<redacted>"
		}

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return eris.Wrap(err, "error marshaling config")
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create a configuration file with every option at its default value. Refuses to overwrite an existing file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return eris.Wrap(err, "error finding home directory")
			}
			path = filepath.Join(home, ".antihoax", "config.yaml")
		}

		if _, err := os.Stat(path); err == nil {
			return eris.Errorf("config file already exists: %s\nUse 'antihoax config show' to view it, or delete it first to recreate", path)
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", path)
		fmt.Fprintf(out, "\nSet the API key through the environment rather than the file:\n")
		fmt.Fprintf(out, "  export ANTIHOAX_AI_API_KEY=sk-...\n")
		fmt.Fprintf(out, "  export ANTIHOAX_AI_ENABLED=true\n")
		return nil
	},
}

func writeDefaultConfig(path string) error {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return eris.Wrap(err, "error marshaling config")
	}

	header := []byte("# Antihoax configuration\n" +
		"# Environment variables override these values, e.g. ANTIHOAX_AI_ENABLED=true\n\n")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "error creating config directory")
	}
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return eris.Wrap(err, "error writing config")
	}
	return nil
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "target file (default: ~/.antihoax/config.yaml)")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
