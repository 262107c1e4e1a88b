package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/kgvault/internal/config"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the stored Neo4j password",
	Long: `Store the Neo4j password in the OS keychain, or in
~/.config/kgvault/credentials.yaml when no keychain is available.
NEO4J_PASSWORD in the environment always takes precedence.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Prompt for the Neo4j password and store it",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored Neo4j password",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsDelete,
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	cm := config.NewCredentialManager(cfg.DeploymentMode())

	password, err := cm.ReadPassword("Neo4j password: ")
	if err != nil {
		return err
	}
	where, err := cm.SaveNeo4jPassword(password)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Neo4j password saved to %s (%s)\n", where, config.MaskSecret(password))
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	cm := config.NewCredentialManager(cfg.DeploymentMode())
	if err := cm.DeleteNeo4jPassword(); err != nil {
		return err
	}
	fmt.Println("✅ Stored Neo4j password removed")
	return nil
}
