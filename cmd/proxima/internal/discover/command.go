package discover

import (
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	user        string
	noAdvertise bool
	noScan      bool
	duration    time.Duration
	debug       bool
}

func NewDiscoverCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "discover",
		Aliases: []string{"d"},
		Short:   "Advertise this user and list nearby peers over Bluetooth LE",
		Args:    cobra.NoArgs,
		Example: `  proxima discover --user alice
  proxima discover --no-advertise
  proxima discover --duration 30s`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return discoverCmd(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User id to advertise (default: session.user_id)")
	cmd.Flags().BoolVar(&opts.noAdvertise, "no-advertise", false, "Only scan")
	cmd.Flags().BoolVar(&opts.noScan, "no-scan", false, "Only advertise")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
