package onboard

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/proxima/cmd/proxima/internal"
	"github.com/tinyland-inc/proxima/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	var force bool
	var user string

	cmd := &cobra.Command{
		Use:     "onboard",
		Aliases: []string{"o"},
		Short:   "Write a default configuration file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return onboard(cmd, internal.GetConfigPath(), user, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	cmd.Flags().StringVar(&user, "user", "", "User id to store in the session section")

	return cmd
}

func onboard(cmd *cobra.Command, path, user string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.Session.UserID = user
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Config written to %s\n", internal.Logo, path)
	return nil
}
