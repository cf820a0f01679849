package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/go-arcade/modelgate/internal/bootstrap"
	"github.com/go-arcade/modelgate/pkg/duration"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Issue and check workspace API keys",
}

var (
	issueWorkspace string
	issueName      string
	issueBy        string
	issueTTL       duration.Value
)

var apiKeyIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a key and print its token once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			issued, err := app.Services.Workspaces.IssueApiKey(ctx, issueWorkspace, issueName, issueBy, issueTTL.D)
			if err != nil {
				return err
			}
			out := map[string]any{
				"workspaceId": issued.Key.WorkspaceID,
				"keyId":       issued.Key.KeyID,
				"keyPrefix":   issued.Key.KeyPrefix,
				"token":       issued.Token,
			}
			if issued.Key.ExpiresAt != nil {
				out["expiresAt"] = issued.Key.ExpiresAt.Format(time.RFC3339)
			}
			raw, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		})
	},
}

var apiKeyVerifyCmd = &cobra.Command{
	Use:   "verify TOKEN",
	Short: "Check a token and print the key it resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			key, err := app.Services.Workspaces.VerifyApiKey(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "valid: workspace=%s key=%s name=%q\n", key.WorkspaceID, key.KeyID, key.Name)
			return err
		})
	},
}

func init() {
	f := apiKeyIssueCmd.Flags()
	f.StringVar(&issueWorkspace, "workspace", "", "workspace id")
	f.StringVar(&issueName, "name", "", "key name")
	f.StringVar(&issueBy, "by", "", "issuing account id")
	f.Var(&issueTTL, "ttl", "lifetime, e.g. 90d, 12h or never")
	_ = apiKeyIssueCmd.MarkFlagRequired("workspace")
	_ = apiKeyIssueCmd.MarkFlagRequired("name")

	apiKeyCmd.AddCommand(apiKeyIssueCmd, apiKeyVerifyCmd)
	rootCmd.AddCommand(apiKeyCmd)
}
