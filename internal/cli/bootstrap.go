package cli

import (
	"fmt"

	"github.com/go-onboarding/internal/infrastructure/awsinfra"
	"github.com/go-onboarding/internal/infrastructure/dynamo"
	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the DynamoDB tables if they do not exist",
	Long: `Create the onboarding session table (with TTL on expires_at) and the
account pool table. Existing tables are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		awsCfg, err := awsinfra.LoadConfig(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		client := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
		dynamo.Bootstrap(cmd.Context(), client, cfg.DynamoTables, log)
		fmt.Fprintf(cmd.OutOrStdout(), "tables ready: %s, %s\n", cfg.DynamoTables.Onboarding, cfg.DynamoTables.Accounts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}
