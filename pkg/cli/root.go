package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// NewRootCommand builds the protomock command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "protomock",
		Short: "protomock serves protobuf messages from HTTP stubs",
		Long: `protomock runs an HTTP stub server and exchanges protocol-buffer messages
with it as JSON. An optional gRPC bridge forwards calls defined in .proto
files to the stub server.

Server options can be given as flags or as WIREMOCK_<OPTION> environment
variables. Flags win over the environment.`,
		// No Run function: 'protomock' with no args prints help.
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newRequestCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command and exits non-zero on error.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
