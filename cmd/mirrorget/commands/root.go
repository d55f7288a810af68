// Package commands implements the mirrorget CLI.
package commands

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mirrorget/mirrorget/pkg/logging"
)

var log = logging.NewLogger(os.Stderr, logrus.WarnLevel)

// NewRootCmd builds the mirrorget command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "mirrorget",
		Short:         "Multi-source chunked HTTP downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(
		newGetCmd(),
		newBatchCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
