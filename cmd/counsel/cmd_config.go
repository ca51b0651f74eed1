package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blueman82/go-counsel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage orchestrator configuration",
	Long:  `Validate counsel.yaml and manage adapter secrets in the system keyring.`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate counsel.yaml",
	RunE:  runConfigValidate,
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret [name] [value]",
	Short: "Save an adapter secret to the system keyring",
	Long: `Save a secret to the system keyring under the given name. Reference it
from counsel.yaml with adapters.<id>.api_key: "keyring:<name>".`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSetSecret,
}

var configGetSecretCmd = &cobra.Command{
	Use:   "get-secret [name]",
	Short: "Retrieve an adapter secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGetSecret,
}

var configDeleteSecretCmd = &cobra.Command{
	Use:   "delete-secret [name]",
	Short: "Remove an adapter secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDeleteSecret,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetSecretCmd)
	configCmd.AddCommand(configGetSecretCmd)
	configCmd.AddCommand(configDeleteSecretCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, projectRoot)
	if err != nil {
		return err
	}
	fmt.Printf("config OK: %d adapters, decision graph db at %s\n", len(cfg.Adapters), cfg.DecisionGraph.DBPath)
	return nil
}

func runConfigSetSecret(cmd *cobra.Command, args []string) error {
	if err := config.SaveSecretToKeyring(args[0], args[1]); err != nil {
		return fmt.Errorf("saving secret %q: %w", args[0], err)
	}
	fmt.Printf("saved secret %q\n", args[0])
	return nil
}

func runConfigGetSecret(cmd *cobra.Command, args []string) error {
	v, err := config.GetSecretFromKeyring(args[0])
	if err != nil {
		return fmt.Errorf("retrieving secret %q: %w", args[0], err)
	}
	fmt.Println(v)
	return nil
}

func runConfigDeleteSecret(cmd *cobra.Command, args []string) error {
	if err := config.DeleteSecretFromKeyring(args[0]); err != nil {
		return fmt.Errorf("deleting secret %q: %w", args[0], err)
	}
	fmt.Printf("deleted secret %q\n", args[0])
	return nil
}
