package chat

import (
	"github.com/spf13/cobra"
)

type options struct {
	user  string
	match string
	to    string
	debug bool
}

func NewChatCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "chat",
		Aliases: []string{"c"},
		Short:   "Open an interactive chat for a match",
		Args:    cobra.NoArgs,
		Example: `  proxima chat --match 64f1c0 --to bob
  proxima chat --match 64f1c0 --to bob --user alice`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chatCmd(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "Match id of the conversation")
	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "Recipient user id")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "Override the session user id")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("match")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
