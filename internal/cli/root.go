// Package cli implements onboardctl, the operator CLI for the onboarding service.
package cli

import (
	"github.com/go-onboarding/internal/config"
	"github.com/go-onboarding/internal/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	envFile string
	verbose bool
	cfg     *config.Config
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "onboardctl",
	Short: "Operator CLI for the onboarding service",
	Long: `onboardctl performs the administrative tasks around the onboarding API.

Example usage:
  onboardctl token --operator op-1          # Issue an operator JWT
  onboardctl token --operator root --role admin
  onboardctl keygen                         # Print a fresh CREDENTIAL_KEY
  onboardctl bootstrap                      # Create the DynamoDB tables`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing env file is not an error: the environment may be set directly.
		_ = godotenv.Load(envFile)
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log = logger.NewWithWriter(cmd.ErrOrStderr(), level, true)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
