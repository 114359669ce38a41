package cli

import (
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/devlog-hq/devlog/internal/modules/service"
)

// confirmFunc asks a yes/no question. Replaced in tests.
var confirmFunc = func(msg string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: msg, Default: false}, &ok)
	return ok, err
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Credential storage migrations",
	}

	var clearKeys, yes bool
	credentials := &cobra.Command{
		Use:   "credentials",
		Short: "Hash legacy plaintext emails and API keys",
		Long: `Hashes every legacy plaintext email into email_hash.

Legacy API keys are only hashed (and the plaintext column cleared) with
--clear-api-keys. That step cannot be undone, so it asks for confirmation
unless --yes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := boot()
			if err != nil {
				return err
			}
			defer shutdown(inj)

			opts := service.MigrateOptions{}
			if clearKeys {
				ok := yes
				if !ok {
					if ok, err = confirmFunc("Hash legacy API keys and permanently clear the plaintext column?"); err != nil {
						return err
					}
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "API keys left untouched")
				}
				opts.ConfirmClearAPIKeys = ok
			}

			report, err := do.MustInvoke[service.CredentialService](inj).MigrateLegacyCredentials(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	credentials.Flags().BoolVar(&clearKeys, "clear-api-keys", false, "also hash legacy API keys and clear the plaintext column")
	credentials.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Report users that still carry legacy credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := boot()
			if err != nil {
				return err
			}
			defer shutdown(inj)

			v, err := do.MustInvoke[service.CredentialService](inj).VerifyMigration(cmd.Context())
			if err != nil {
				return err
			}
			printVerification(cmd.OutOrStdout(), v)
			if !v.Complete {
				return fmt.Errorf("migration incomplete")
			}
			return nil
		},
	}

	cmd.AddCommand(credentials, verify)
	return cmd
}

func printReport(w io.Writer, r *service.MigrationReport) {
	fmt.Fprintf(w, "scanned:            %d\n", r.Scanned)
	fmt.Fprintf(w, "emails migrated:    %d\n", r.EmailsMigrated)
	fmt.Fprintf(w, "api keys migrated:  %d\n", r.APIKeysMigrated)
	if r.APIKeysSkipped > 0 {
		fmt.Fprintf(w, "api keys skipped:   %d (rerun with --clear-api-keys)\n", r.APIKeysSkipped)
	}
}

func printVerification(w io.Writer, v *service.MigrationVerification) {
	fmt.Fprintf(w, "users:              %d\n", v.TotalUsers)
	fmt.Fprintf(w, "missing email hash: %d\n", v.MissingEmailHash)
	fmt.Fprintf(w, "plaintext api keys: %d\n", v.PlaintextAPIKeys)
	fmt.Fprintf(w, "legacy email rows:  %d\n", v.LegacyEmailColumns)
	if v.Complete {
		fmt.Fprintln(w, "status:             complete")
	} else {
		fmt.Fprintln(w, "status:             incomplete")
	}
}
