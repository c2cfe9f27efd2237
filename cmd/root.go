package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gateway
var rootCmd = &cobra.Command{
	Use:   "google-actions-proxy",
	Short: "Personal gateway that proxies Gmail, Calendar and Contacts calls",
	Long: `google-actions-proxy authenticates once against Google via the OAuth2
authorization-code flow, persists the credential set, and proxies a fixed set
of Gmail, Calendar and Contacts requests with a valid bearer token attached.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the CLI application
func Execute() {
	// Running the binary with no arguments starts the gateway.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
