package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/webclaw/cmd/webclaw/internal"
	"github.com/tinyland-inc/webclaw/cmd/webclaw/internal/gateway"
	"github.com/tinyland-inc/webclaw/cmd/webclaw/internal/version"
)

func NewWebclawCommand() *cobra.Command {
	short := fmt.Sprintf("%s webclaw - Web UI channel relay v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "webclaw",
		Short:   short,
		Example: "webclaw gateway",
	}

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewWebclawCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
