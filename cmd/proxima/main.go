// Proxima - nearby discovery and realtime chat client
// License: MIT
//
// Copyright (c) 2026 Proxima contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/proxima/cmd/proxima/internal"
	"github.com/tinyland-inc/proxima/cmd/proxima/internal/chat"
	"github.com/tinyland-inc/proxima/cmd/proxima/internal/discover"
	"github.com/tinyland-inc/proxima/cmd/proxima/internal/onboard"
	"github.com/tinyland-inc/proxima/cmd/proxima/internal/version"
)

func NewProximaCommand() *cobra.Command {
	short := fmt.Sprintf("%s proxima - nearby discovery and chat v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "proxima",
		Short:   short,
		Example: "proxima discover --user alice",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		discover.NewDiscoverCommand(),
		chat.NewChatCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewProximaCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
