package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/proxima/cmd/proxima/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			build, goVer := internal.FormatBuildInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s proxima %s\n", internal.Logo, internal.FormatVersion())
			if build != "" {
				fmt.Fprintf(out, "  Build: %s\n", build)
			}
			fmt.Fprintf(out, "  Go: %s\n", goVer)
		},
	}
}
