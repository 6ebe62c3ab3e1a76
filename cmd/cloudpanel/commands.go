package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/cloudpanel/internal/adapter/driven/sqlite"
	vaultadapter "github.com/ericfisherdev/cloudpanel/internal/adapter/driven/vault"
	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// withApp opens the composition root for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	if err := requireConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// readSecret reads one line from r without echoing it anywhere.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func credentialFromFlags(cmd *cobra.Command) (model.Credential, error) {
	keyID, _ := cmd.Flags().GetString("access-key-id")
	fromStdin, _ := cmd.Flags().GetBool("secret-stdin")

	cred := model.Credential{AccessKeyID: strings.TrimSpace(keyID)}
	if fromStdin {
		secret, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return model.Credential{}, err
		}
		cred.SecretAccessKey = secret
	}
	return cred, nil
}

// accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage registered accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			accounts, err := a.registry.List(ctx)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts registered.")
				return nil
			}
			printAccounts(cmd.OutOrStdout(), accounts)
			return nil
		})
	},
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register an account",
	Long: `Register an account. Without --access-key-id the account syncs
deterministic mock data. The secret access key is only accepted on stdin
so it never appears in shell history.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		region, _ := cmd.Flags().GetString("region")

		cred, err := credentialFromFlags(cmd)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			account, err := a.registry.Create(ctx, model.AccountInput{
				ID:              id,
				Name:            name,
				Region:          region,
				AccessKeyID:     cred.AccessKeyID,
				SecretAccessKey: cred.SecretAccessKey,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (%s)\n", account.ID, account.Name)
			if !account.HasCredentials {
				fmt.Fprintln(cmd.OutOrStdout(), cyan("No credentials stored: syncs will use mock data."))
			}
			return nil
		})
	},
}

var accountsUpdateCmd = &cobra.Command{
	Use:   "update <account-id>",
	Short: "Rename, move or (de)activate an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var update model.AccountUpdate
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			update.Name = &name
		}
		if cmd.Flags().Changed("region") {
			region, _ := cmd.Flags().GetString("region")
			update.Region = &region
		}
		if cmd.Flags().Changed("active") {
			active, _ := cmd.Flags().GetBool("active")
			update.IsActive = &active
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			account, err := a.registry.Update(ctx, args[0], update)
			if err != nil {
				return err
			}
			printAccounts(cmd.OutOrStdout(), []model.Account{*account})
			return nil
		})
	},
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete <account-id>",
	Short: "Delete an account and its cached inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.registry.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", args[0])
			return nil
		})
	},
}

var accountsSetCredentialCmd = &cobra.Command{
	Use:   "set-credential <account-id>",
	Short: "Replace or clear an account's credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cred, err := credentialFromFlags(cmd)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.registry.SetCredential(ctx, args[0], cred); err != nil {
				return err
			}
			if cred.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared credential for %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Stored credential %s for %s\n", cred, args[0])
			}
			return nil
		})
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync [account-id]",
	Short: "Sync one account, or all active accounts with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return errors.New("give exactly one of <account-id> or --all")
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if all {
				a.scheduler.RunCycle(ctx)
				return nil
			}

			run, err := a.orchestrator.Sync(ctx, args[0])
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			if err != nil {
				return err
			}
			if run.Status == model.SyncFailed {
				return errors.New("sync failed")
			}
			return nil
		})
	},
}

// test command
var testCmd = &cobra.Command{
	Use:   "test <account-id>",
	Short: "Check that an account's credential is valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			id, err := a.tester.Test(ctx, args[0])
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), red("FAILED"), err)
				return errors.New("connection test failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("OK"), id.ARN, "account", id.Account)
			return nil
		})
	},
}

// resources command
var resourcesCmd = &cobra.Command{
	Use:   "resources <account-id>",
	Short: "List cached resources (no remote calls)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")
		includeRemoved, _ := cmd.Flags().GetBool("include-removed")

		filter := model.ResourceFilter{AccountID: args[0], IncludeRemoved: includeRemoved}
		if service != "" {
			kind, ok := model.ParseServiceKind(service)
			if !ok {
				return fmt.Errorf("unknown service %q", service)
			}
			filter.Kind = kind
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.registry.Get(ctx, args[0]); err != nil {
				return err
			}
			resources, err := a.resources.List(ctx, filter)
			if err != nil {
				return err
			}
			if len(resources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No resources cached. Run a sync first.")
				return nil
			}
			printResources(cmd.OutOrStdout(), resources)
			return nil
		})
	},
}

// runs command
var runsCmd = &cobra.Command{
	Use:   "runs <account-id>",
	Short: "Show sync history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.registry.Get(ctx, args[0]); err != nil {
				return err
			}
			runs, err := a.runs.ListByAccount(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sync runs recorded.")
				return nil
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

// prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete removed resources past the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if olderThan == 0 {
				olderThan = cfg.RemovedRetention
			}
			if olderThan <= 0 {
				return errors.New("no retention window: pass --older-than or set CLOUDPANEL_REMOVED_RETENTION")
			}
			n, err := a.scheduler.Prune(ctx, olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d removed resources not seen for %s\n", n, olderThan)
			return nil
		})
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and vault status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			version, dirty, err := sqliteadapter.SchemaVersion(a.db.Writer)
			if err != nil {
				return err
			}
			accounts, err := a.registry.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database:  %s (schema v%d", a.db.Path(), version)
			if dirty {
				fmt.Fprint(out, red(", dirty"))
			}
			fmt.Fprintln(out, ")")
			fmt.Fprintf(out, "Vault:     %s (%s)\n", yesNo(a.vault.Enabled()), cfg.Cipher)
			fmt.Fprintf(out, "Accounts:  %d\n", len(accounts))
			fmt.Fprintf(out, "Scheduler: %s\n", schedulerText(cfg.SyncInterval))
			return nil
		})
	},
}

func schedulerText(interval time.Duration) string {
	if interval <= 0 {
		return faint("disabled")
	}
	return "every " + interval.String()
}

// keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate vault key material",
	Long: `Without --out, print a random CLOUDPANEL_SECRET_KEY for the aes cipher.
With --out, write a new age identity for CLOUDPANEL_AGE_IDENTITY_FILE.`,
	Annotations: map[string]string{"config": "none"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")
		force, _ := cmd.Flags().GetBool("force")

		if out == "" {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
			return nil
		}

		recipient, err := writeAgeIdentity(out, force, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote age identity to %s\nPublic key: %s\n", out, recipient)
		return nil
	},
}

// writeAgeIdentity generates an identity and atomically writes it in
// age-keygen format. It returns the public recipient string.
func writeAgeIdentity(path string, force bool, now time.Time) (string, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	identity, err := vaultadapter.GenerateAgeIdentity()
	if err != nil {
		return "", err
	}
	parsed, err := age.ParseX25519Identity(identity)
	if err != nil {
		return "", err
	}
	recipient := parsed.Recipient().String()

	content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n", now.UTC().Format(time.RFC3339), recipient, identity)
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return "", fmt.Errorf("writing identity: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return "", fmt.Errorf("restricting identity permissions: %w", err)
	}
	return recipient, nil
}
