package commands

import "github.com/spf13/cobra"

var Version = "dev"

func newVersionCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "version",
		Short: "Show the mirrorget version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("mirrorget version %s\n", Version)
		},
	}
	return c
}
