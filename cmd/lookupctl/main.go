package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kennteohstorehub/BeepChatBot/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lookupctl",
		Short: "Operator tool for the order status bot",
		Long: `lookupctl resolves order references with the worker's configuration and
enqueues resolve_order jobs by hand.`,
		SilenceUsage: true,
	}
	cli.AddConfigFlags(rootCmd)

	rootCmd.AddCommand(cli.ResolveCmd(cli.DefaultLoader))
	rootCmd.AddCommand(cli.EnqueueCmd(cli.DefaultLoader))
	rootCmd.AddCommand(cli.BatchCmd(cli.DefaultLoader))
	rootCmd.AddCommand(cli.ExtractCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
