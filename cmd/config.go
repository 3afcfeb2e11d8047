// File: cmd/config.go
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/vigil/internal/config"
)

const defaultConfigFile = "vigil.yaml"

// newConfigCmd groups the commands that manage vigil.yaml. They run without
// loading configuration so a broken file can still be replaced or checked.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Create or check a vigil configuration file",
		Annotations: map[string]string{"skipConfig": "true"},
	}
	configCmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file populated with the defaults",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := writeDefaultConfig(path, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", written)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", defaultConfigFile, "Destination of the configuration file.")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file.")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration file and environment and report problems",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")

			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}
			if _, err := config.NewConfigFromViper(v); err != nil {
				return fmt.Errorf("configuration is invalid: %w", err)
			}

			source := v.ConfigFileUsed()
			if source == "" {
				source = "defaults and environment"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s)\n", source)
			return nil
		},
	}
}

// writeDefaultConfig renders the viper defaults as YAML at path.
func writeDefaultConfig(path string, force bool) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand config path: %w", err)
	}

	if !force {
		if _, err := os.Stat(expanded); err == nil {
			return "", fmt.Errorf("%s already exists; pass --force to overwrite", expanded)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to check %s: %w", expanded, err)
		}
	}

	v := viper.New()
	config.SetDefaults(v)
	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return "", fmt.Errorf("failed to render default configuration: %w", err)
	}

	if dir := filepath.Dir(expanded); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", expanded, err)
	}
	return expanded, nil
}
