package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/kgvault/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect kgvault configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (password masked)",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateContext string

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration for the current deployment mode",
	Long: `Validate the effective configuration. Contexts: backup, restore,
offline (list/verify/history only), all.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the current settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)

	configValidateCmd.Flags().StringVar(&validateContext, "context", string(config.ValidationContextAll), "what to validate for")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	shown.Neo4j.Password = config.MaskSecret(cfg.Neo4j.Password)

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	home, _ := os.UserHomeDir()
	credPath := filepath.Join(home, ".config", "kgvault", "credentials.yaml")
	source := config.NewKeyringManager().GetPasswordSource(cfg, credPath)
	fmt.Printf("\n# password source: %s (%s)\n", source.Source, source.Recommended)
	fmt.Printf("# deployment mode: %s\n", cfg.DeploymentMode())
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	mode := cfg.DeploymentMode()
	result := cfg.ValidateWithMode(config.ValidationContext(validateContext), mode)

	if result.HasErrors() {
		fmt.Print(result.Error())
		fmt.Printf("\nDeployment mode: %s (%s)\n", mode, mode.Description())
		return fmt.Errorf("configuration is invalid")
	}

	fmt.Printf("✅ Configuration is valid for %s (mode: %s)\n", validateContext, mode)
	for _, warn := range result.Warnings {
		fmt.Printf("  ⚠️  %s\n", warn)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".kgvault", "config.yaml")
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("✅ Wrote %s\n", path)
	fmt.Println("   The Neo4j password is not stored there; run 'kgvault credentials set'")
	return nil
}
