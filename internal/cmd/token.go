package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/api"
	"github.com/hargabyte/lens/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP service",
	Long: `Issue a signed bearer token accepted by 'lens serve' in place of the
shared secret. The token is signed with security.secret (or LENS_SECRET),
so the service and this command must share the same secret.`,
	Example: `  lens token --subject ci --ttl 720h
  curl -H "Authorization: Bearer $(lens token)" localhost:8000/api/projects/`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "lens", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Security.Secret == "" {
		return fmt.Errorf("no secret configured: set security.secret in %s/%s or %s",
			config.ConfigDirName, config.ConfigFileName, config.SecretEnv)
	}
	token, err := api.IssueToken(cfg.Security.Secret, tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
