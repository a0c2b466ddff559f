package ledger

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

// FileMeta describes one input file as listed in the ledger's Files: block.
type FileMeta struct {
	Path string
	Size uint64
}

// Writer implements merkle.Sink, rendering the canonical node-record
// stream into the textual ledger format described in the ledger format
// section. The full file list must be known up front (to print the
// Files: block before any records), so NewWriter takes it directly rather
// than discovering it one BeginFile call at a time.
type Writer struct {
	w      *bufio.Writer
	params merkle.TreeParams
	short  bool
	files  []FileMeta
	cur    int
}

var _ merkle.Sink = (*Writer)(nil)

// NewWriter writes the ledger header (and, in non-short mode, the Files:
// block) immediately, then returns a Writer ready to accept per-file
// records via the merkle.Sink interface.
func NewWriter(w io.Writer, params merkle.TreeParams, short bool, files []FileMeta) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, params); err != nil {
		return nil, err
	}
	if !short {
		if err := writeFilesBlock(bw, files); err != nil {
			return nil, err
		}
	}
	return &Writer{w: bw, params: params, short: short, files: files}, nil
}

func writeHeader(w *bufio.Writer, params merkle.TreeParams) error {
	_, err := fmt.Fprintf(w, "merkle_tree_checksum v%s\nHash function: %s\nBlock size: %d\nBranching factor: %d\n",
		Version, params.Algo.String(), params.BlockLength, params.BranchFactor)
	return err
}

func writeFilesBlock(w *bufio.Writer, files []FileMeta) error {
	if _, err := fmt.Fprintf(w, "Files:\n"); err != nil {
		return err
	}
	for _, f := range files {
		if _, err := fmt.Fprintf(w, "  \"%s\" %s bytes\n", QuotePath(f.Path), formatHexUint(f.Size)); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) BeginFile(fileIndex uint32, path string, fileSize uint64) error {
	if int(fileIndex) != wr.cur || int(fileIndex) >= len(wr.files) {
		return fmt.Errorf("ledger: BeginFile out of order or unknown file index %d", fileIndex)
	}
	return nil
}

func (wr *Writer) Accept(record merkle.NodeRecord) error {
	if wr.short {
		return nil
	}
	_, err := fmt.Fprintf(wr.w, "[%d] [%d-%d] [%d-%d] %s\n",
		record.FileIndex,
		record.Range.TreeBlockStart, record.Range.TreeBlockEnd,
		record.Range.FileByteStart, record.Range.FileByteEnd,
		formatHex(record.Hash))
	return err
}

func (wr *Writer) EndFile(rootHash []byte) error {
	if wr.short {
		f := wr.files[wr.cur]
		if _, err := fmt.Fprintf(wr.w, "%s  \"%s\"\n", formatHex(rootHash), QuotePath(f.Path)); err != nil {
			return err
		}
	}
	wr.cur++
	return nil
}

func (wr *Writer) Finish() error {
	return wr.w.Flush()
}
