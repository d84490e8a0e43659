package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage OPTIX configuration",
	Long: `Manage OPTIX configuration.

Configuration sources (in order of precedence):
1. Environment variables (OPTIX_* prefix)
2. Project config (./optix.toml, searched up the directory tree)
3. User config (~/.optix/optix.toml)
4. System config (/etc/optix/optix.toml)
5. Default values

Git credentials are never part of configuration; they ride on each
request and are never written to disk.

Examples:
  optix config show               # Show resolved configuration
  optix config show --format json # Show configuration as JSON
  optix config init               # Write defaults to ~/.optix/optix.toml
  optix config validate           # Validate current configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration",
	Long:  "Display the configuration OPTIX resolves from all sources",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  "Write the default configuration to ~/.optix/optix.toml as a starting point for edits",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current OPTIX configuration is valid",
	RunE:  runConfigValidate,
}

var (
	configFormat    string
	configInitForce bool
)

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file (a backup is kept)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# OPTIX configuration\n%s", string(data))

	default:
		return errors.InvalidInputf("unsupported format: %s (supported: toml, json)", configFormat)
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := config.UserConfigPath()

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		pterm.Warning.Printf("Config file already exists: %s (use --force to overwrite)\n", configPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), config.DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create config directory %s", filepath.Dir(configPath))
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load defaults")
	}

	// Save rotates backups of any file already there
	if err := config.Save(cfg, configPath); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	pterm.Success.Printf("Wrote %s\n", configPath)
	pterm.Info.Println("Edit it and restart 'optix serve' (or let the running server pick up reloadable settings)")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Println("✓ Configuration is valid")
	return nil
}
