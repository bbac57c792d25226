package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect tokens with the configured secret",
	}
	cmd.AddCommand(newTokenIssueCmd(), newTokenDecodeCmd())
	return cmd
}

func tokenManager() (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.Auth.SigningMethod),
		Secret:        []byte(cfg.Auth.Secret),
		DefaultTTL:    cfg.Auth.TokenTTL,
	})
}

func newTokenIssueCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token without registering a session",
		Long: `Sign a token for the given subject and role.

No session is registered, so a running server rejects the token with
"Session expired!" until a login for the same subject and role succeeds.
Useful for exercising the codec and the guard's rejection paths.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := tokenManager()
			if err != nil {
				return err
			}
			token, err := mgr.Issue(subject, session.Role(role), uuid.NewString(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Username to embed")
	cmd.Flags().StringVar(&role, "role", string(session.RoleUser), "Role (user or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (default: configured token TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newTokenDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := tokenManager()
			if err != nil {
				return err
			}
			claims, err := mgr.Decode(args[0])
			if err != nil {
				return err
			}

			out := map[string]any{
				"username":   claims.Username,
				"user_type":  claims.UserType,
				"session_id": claims.SessionID(),
			}
			if claims.ExpiresAt != nil {
				out["expires_at"] = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
