package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/identity"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		id    string
		role  string
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			r, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}

			tok, err := identity.Mint([]byte(cfg.Auth.JWTSecret), domain.Principal{ID: id, Role: r, Email: email}, cfg.Auth.Issuer, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "role claim: guest, user or admin")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
