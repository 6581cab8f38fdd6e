package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/identity"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Issue an identity token for a user",
		Long: `Sign a token whose subject is the user key, using jwt_secret. Set it as
token (or CARDFS_TOKEN) to sign in without --user.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return NewExitError(ExitCommandError, "jwt_secret is not configured")
			}
			if args[0] == identity.Anonymous {
				return NewExitError(ExitCommandError, "user is required")
			}
			if err := identity.ValidateKey(args[0]); err != nil {
				return WrapExitError(ExitCommandError, "invalid user", err)
			}

			now := time.Now()
			claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)}
			if ttl > 0 {
				claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
			}
			token, err := identity.NewJWT(cfg.JWTSecret, "").Sign(args[0], claims)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to sign token", err)
			}
			return formatter(cmd, opts).Result(map[string]string{"token": token}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, token)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime (0 for none)")
	return cmd
}
