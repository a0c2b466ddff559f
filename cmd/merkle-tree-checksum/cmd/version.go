package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the module's release version, set at build time via
// -ldflags "-X .../cmd.Version=...". "dev" marks a local build.
var Version = "dev"

func (c *command) initVersionCmd() {
	c.root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("merkle-tree-checksum %s (%s)\n", Version, runtime.Version())
		},
	})
	c.root.Version = Version + " (" + runtime.Version() + ")"
}
