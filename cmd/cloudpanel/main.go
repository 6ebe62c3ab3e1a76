package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/cloudpanel/internal/config"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cloudpanel",
	Short:         "Local inventory cache for AWS accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["config"] == "none" {
			return nil
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))
		return nil
	},
}

func init() {
	// accounts subcommands
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsCreateCmd)
	accountsCreateCmd.Flags().String("id", "", "Account id (generated when empty)")
	accountsCreateCmd.Flags().String("name", "", "Display name")
	accountsCreateCmd.Flags().String("region", "us-east-1", "Home region")
	accountsCreateCmd.Flags().String("access-key-id", "", "AWS access key id (omit for mock data)")
	accountsCreateCmd.Flags().Bool("secret-stdin", false, "Read the secret access key from stdin")
	accountsCmd.AddCommand(accountsUpdateCmd)
	accountsUpdateCmd.Flags().String("name", "", "New display name")
	accountsUpdateCmd.Flags().String("region", "", "New home region")
	accountsUpdateCmd.Flags().Bool("active", true, "Whether scheduled syncs include the account")
	accountsCmd.AddCommand(accountsDeleteCmd)
	accountsCmd.AddCommand(accountsSetCredentialCmd)
	accountsSetCredentialCmd.Flags().String("access-key-id", "", "AWS access key id (empty clears the credential)")
	accountsSetCredentialCmd.Flags().Bool("secret-stdin", false, "Read the secret access key from stdin")

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("all", false, "Sync every active account")
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(resourcesCmd)
	resourcesCmd.Flags().StringP("service", "s", "", "Only show one service kind")
	resourcesCmd.Flags().Bool("include-removed", false, "Include resources no longer present remotely")
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().Duration("older-than", 0, "Retention window (defaults to CLOUDPANEL_REMOVED_RETENTION)")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringP("out", "o", "", "Write an age identity to this file")
	keygenCmd.Flags().Bool("force", false, "Overwrite an existing identity file")
}

func requireConfig() error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	return nil
}
