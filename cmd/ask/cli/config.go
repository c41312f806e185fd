package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/ask/internal/config"
	"github.com/felixgeelhaar/ask/internal/credential"
	"github.com/felixgeelhaar/ask/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer s.Close()

		if err := setConfig(s, credential.NewVault(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer s.Close()

		val, err := getConfig(s, args[0])
		if err != nil {
			return err
		}
		if val == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "(not set)")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), val)
		}
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CheckKey(args[0]); err != nil {
			return err
		}
		s, err := getStore()
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer s.Close()
		if err := s.UnsetConfig(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration removed: %s\n", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the resolved settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer s.Close()

		settings, err := config.Load(s, os.Getenv)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(settings)
	},
}

// setConfig validates and persists one key. api_key is sealed first.
func setConfig(j store.Journal, v *credential.Vault, key, value string) error {
	if err := config.Validate(key, value); err != nil {
		return err
	}
	if key == config.KeyAPIKey {
		sealed, err := v.Seal(value)
		if err != nil {
			return err
		}
		value = sealed
	}
	if err := j.SetConfig(key, value); err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	return nil
}

// getConfig returns the stored value. api_key is shown masked.
func getConfig(j store.Journal, key string) (string, error) {
	if err := config.CheckKey(key); err != nil {
		return "", err
	}
	val, err := j.GetConfig(key)
	if err != nil {
		return "", err
	}
	if key == config.KeyAPIKey && val != "" {
		plain, err := credential.NewVault().Open(val)
		if err != nil {
			return "", err
		}
		return credential.MaskSecret(plain), nil
	}
	return val, nil
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configListCmd)
}
