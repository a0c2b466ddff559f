package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rlee287/merkle-tree-checksum/pkg/engine"
	"github.com/rlee287/merkle-tree-checksum/pkg/ledger"
	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

const (
	optionNameHashFunction = "hash-function"
	optionNameBranchFactor = "branch-factor"
	optionNameBlockLength  = "block-length"
	optionNameOutput       = "output"
	optionNameOverwrite    = "overwrite"
	optionNameShort        = "short"
)

func (c *command) initGenerateCmd() {
	var (
		hashFunction string
		branchFactor uint32
		blockLength  uint32
		output       string
		overwrite    bool
		short        bool
	)

	cmd := &cobra.Command{
		Use:   "generate-hash <FILES>...",
		Short: "Hash one or more files and write a ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.config != nil {
				flags := cmd.Flags()
				if !flags.Changed(optionNameHashFunction) && c.config.IsSet(optionNameHashFunction) {
					hashFunction = c.config.GetString(optionNameHashFunction)
				}
				if !flags.Changed(optionNameBranchFactor) && c.config.IsSet(optionNameBranchFactor) {
					branchFactor = uint32(c.config.GetUint32(optionNameBranchFactor))
				}
				if !flags.Changed(optionNameBlockLength) && c.config.IsSet(optionNameBlockLength) {
					blockLength = uint32(c.config.GetUint32(optionNameBlockLength))
				}
			}

			algo, err := merkle.ParseAlgorithm(hashFunction)
			if err != nil {
				return err
			}
			params := merkle.TreeParams{
				Algo:         algo,
				BlockLength:  blockLength,
				BranchFactor: branchFactor,
			}
			if err := params.Validate(); err != nil {
				return err
			}

			if !overwrite {
				if _, err := os.Stat(output); err == nil {
					return &merkle.OutputExistsError{Path: output}
				}
			}

			files, err := statFiles(args)
			if err != nil {
				return err
			}

			out, err := os.Create(output)
			if err != nil {
				return &merkle.IOError{Path: output, Err: err}
			}
			// On any failure past this point the partially written ledger is
			// useless; remove it rather than leave a truncated file behind.
			succeeded := false
			defer func() {
				out.Close()
				if !succeeded {
					os.Remove(output)
				}
			}()

			writer, err := ledger.NewWriter(out, params, short, files)
			if err != nil {
				return err
			}

			orch := engine.New(c.jobs, c.logger)
			if err := orch.Run(cmd.Context(), args, params, writer); err != nil {
				return err
			}

			succeeded = true
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&hashFunction, optionNameHashFunction, "f", "sha256",
		fmt.Sprintf("hash function to use (%s)", strings.Join(merkle.AlgorithmNames(), ", ")))
	f.Uint32VarP(&branchFactor, optionNameBranchFactor, "b", 4, "maximum children per interior node")
	f.Uint32VarP(&blockLength, optionNameBlockLength, "l", 4096, "block size in bytes")
	f.StringVarP(&output, optionNameOutput, "o", "", "ledger output path (required)")
	f.BoolVar(&overwrite, optionNameOverwrite, false, "overwrite the output path if it already exists")
	f.BoolVarP(&short, optionNameShort, "s", false, "emit only one summary line per file")
	cmd.MarkFlagRequired(optionNameOutput) //nolint:errcheck // only fails for an unknown flag name

	c.root.AddCommand(cmd)
}

// statFiles stats every input path up front so the ledger's Files: block
// can be written before any hashing begins.
func statFiles(paths []string) ([]ledger.FileMeta, error) {
	files := make([]ledger.FileMeta, len(paths))
	for i, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &merkle.IOError{Path: p, Err: err}
		}
		files[i] = ledger.FileMeta{Path: p, Size: uint64(info.Size())}
	}
	return files, nil
}
