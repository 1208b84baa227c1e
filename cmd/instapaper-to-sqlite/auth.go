package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/credentials"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/instapaper"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/ui"
)

var authFields = []ui.Field{
	{Key: credentials.KeyConsumerID, Title: "OAuth Consumer ID"},
	{Key: credentials.KeyConsumerSecret, Title: "OAuth Consumer Secret"},
	{Key: credentials.KeyEmail, Title: "Instapaper login (email)"},
	{Key: credentials.KeyPassword, Title: "Instapaper password", Secret: true},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Save authentication credentials to a JSON file",
	Long: `Ask for the Instapaper API key and account login and save them to a
JSON file (auth.json by default).

Existing keys in the file are kept; only the four credential keys are
overwritten. With --check the credentials are verified against the API
before anything is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		path := authPath()

		fmt.Fprintln(out, "In Instapaper, get a Full API key following the process at https://www.instapaper.com/api.")
		fmt.Fprintln(out)

		answers, err := ui.NewPrompter(cmd.InOrStdin(), out).Ask(authFields)
		if err != nil {
			return err
		}
		creds := &credentials.Credentials{
			ConsumerID:     answers[credentials.KeyConsumerID],
			ConsumerSecret: answers[credentials.KeyConsumerSecret],
			Email:          answers[credentials.KeyEmail],
			Password:       answers[credentials.KeyPassword],
		}

		if cfg.GetBool("check") {
			client := instapaper.NewClient(creds.ConsumerID, creds.ConsumerSecret, clientOptions()...)
			session, err := client.Login(cmd.Context(), creds.Email, creds.Password)
			if err != nil {
				return err
			}
			user, err := session.VerifyCredentials(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to verify credentials: %w", err)
			}
			fmt.Fprintf(out, "%s Logged in as %s\n", ui.RenderPass("✓"), user.Username)
		}

		if err := credentials.Save(path, creds.Fields()); err != nil {
			return err
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "Your authentication credentials have been saved to %s. You can now import articles by running:\n\n", path)
		fmt.Fprintln(out, "    $ instapaper-to-sqlite folders instapaper.db")
		fmt.Fprintln(out, "    $ instapaper-to-sqlite bookmarks instapaper.db")
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	addAuthFlag(authCmd)
	authCmd.Flags().Bool("check", false, "Log in with the new credentials before saving them")
	rootCmd.AddCommand(authCmd)
}
