package cli

import (
	"fmt"

	"github.com/go-onboarding/internal/domain"
	jwtinfra "github.com/go-onboarding/internal/infrastructure/jwt"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed operator token",
	Long: `Sign a JWT for an operator with the key pair configured through
JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		operator, _ := cmd.Flags().GetString("operator")
		role, _ := cmd.Flags().GetString("role")
		expiry, _ := cmd.Flags().GetDuration("expiry")
		privPath, _ := cmd.Flags().GetString("private-key")
		pubPath, _ := cmd.Flags().GetString("public-key")

		if role != domain.RoleOperator && role != domain.RoleAdmin {
			return fmt.Errorf("unknown role %q (want %s or %s)", role, domain.RoleOperator, domain.RoleAdmin)
		}
		if privPath == "" {
			privPath = cfg.JWTPrivateKeyPath
		}
		if pubPath == "" {
			pubPath = cfg.JWTPublicKeyPath
		}
		if expiry <= 0 {
			expiry = cfg.JWTExpiry
		}

		p, err := jwtinfra.NewProvider(privPath, pubPath, expiry)
		if err != nil {
			return fmt.Errorf("load keys: %w", err)
		}
		tok, err := p.Sign(operator, role)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		log.Debug().Str("operator_id", operator).Str("role", role).Dur("expiry", expiry).Msg("token issued")
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("operator", "", "operator id carried in the token")
	tokenCmd.Flags().String("role", domain.RoleOperator, "operator role (operator or admin)")
	tokenCmd.Flags().Duration("expiry", 0, "token lifetime (default JWT_EXPIRY_HOURS)")
	tokenCmd.Flags().String("private-key", "", "PEM private key path (default JWT_PRIVATE_KEY_PATH)")
	tokenCmd.Flags().String("public-key", "", "PEM public key path (default JWT_PUBLIC_KEY_PATH)")
	_ = tokenCmd.MarkFlagRequired("operator")
}
