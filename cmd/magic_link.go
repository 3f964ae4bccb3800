package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/procurement-workflow/internal/notify"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var magicLinkCmd = &cobra.Command{
	Use:   "magic-link [email]",
	Short: "Print a sign-in link for an authorized email",
	Long:  `Issue a magic link without sending mail, for operators helping a user whose inbox is unreachable.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		lg := logger.LoggerWrapper()
		service := newAuthService(cfg, newTokenService(cfg), notify.NewLogNotifier(lg), lg)
		link, err := service.IssueLink(args[0])
		if err != nil {
			return fmt.Errorf("cannot issue link for %s: %w", args[0], err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}
