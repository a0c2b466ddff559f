package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rlee287/merkle-tree-checksum/pkg/engine"
	"github.com/rlee287/merkle-tree-checksum/pkg/ledger"
	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

func (c *command) initVerifyCmd() {
	cmd := &cobra.Command{
		Use:   "verify-hash <LEDGER>",
		Short: "Re-hash the files listed in a ledger and compare against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledgerPath := args[0]
			f, err := os.Open(ledgerPath)
			if err != nil {
				return &merkle.IOError{Path: ledgerPath, Err: err}
			}
			defer f.Close()

			parsed, err := ledger.Parse(f)
			if err != nil {
				return err
			}

			// The ledger itself names the files to re-hash, in the order
			// their records were written; nothing on the command line can
			// silently substitute a different file for a ledger entry.
			paths := make([]string, len(parsed.Files))
			for i, fm := range parsed.Files {
				paths[i] = fm.Path
			}

			verifier := ledger.NewVerifier(parsed)
			orch := engine.New(c.jobs, c.logger)
			if err := orch.Run(cmd.Context(), paths, parsed.Params, verifier); err != nil {
				return err
			}

			for _, m := range verifier.Mismatches() {
				cmd.PrintErrln(m.Error())
			}
			if len(verifier.Mismatches()) > 0 {
				return errVerifyMismatchFound
			}
			return nil
		},
	}

	c.root.AddCommand(cmd)
}
