package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/omochice/caret-chat/internal/client"
	"github.com/omochice/caret-chat/internal/client/tui"
	"github.com/omochice/caret-chat/pkg/protocol"
)

const dialTimeout = 10 * time.Second

func main() {
	if err := clientCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func clientCmd() *cobra.Command {
	var serverAddr string

	cmd := &cobra.Command{
		Use:          "caret-chat [nickname]",
		Short:        "Join a caret-delimited chat server",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return run(cmd.Context(), serverAddr, name)
		},
	}

	cmd.Flags().StringVarP(&serverAddr, "server", "s", fmt.Sprintf("127.0.0.1:%d", protocol.DefaultPort),
		"server address: host:port for TCP or a ws:// URL")
	return cmd
}

func run(ctx context.Context, address, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c := client.New(address, name)
	if err := c.Connect(dialCtx); err != nil {
		return err
	}
	defer c.Disconnect()

	p := tea.NewProgram(tui.New(c, c.Messages()), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
