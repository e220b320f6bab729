package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kubev2v/vmware-inventory/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	command := NewInventoryCommand()
	err := command.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func NewInventoryCommand() *cobra.Command {
	cmd := cli.NewCmdInventory()
	cmd.AddCommand(cli.NewCmdSync())
	cmd.AddCommand(cli.NewCmdHostInfo())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
