package cli

import (
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Read the current pool rate once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Quote(cmd.Context())
	},
}
