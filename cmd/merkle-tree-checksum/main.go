// Command merkle-tree-checksum computes and verifies block-oriented Merkle
// tree checksums over one or more files.
package main

import (
	"fmt"
	"os"

	"github.com/rlee287/merkle-tree-checksum/cmd/merkle-tree-checksum/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cmd.ExitCodeFor(err))
}
