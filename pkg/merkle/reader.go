package merkle

import (
	"errors"
	"io"
)

// BlockReader presents a file as a lazy sequence of fixed-length Blocks,
// read strictly sequentially from offset 0 (no seeking, so pipe-like
// inputs remain possible). The final block may be short; an empty input
// still yields exactly one Block of length 0.
type BlockReader struct {
	r           io.Reader
	blockLength uint32
	path        string
	index       uint64
	done        bool
}

// NewBlockReader wraps r, splitting it into blocks of blockLength bytes.
// path is used only to identify the source in a read-time *IOError; it may
// be empty if r has no meaningful path (e.g. an in-memory buffer in tests).
func NewBlockReader(r io.Reader, blockLength uint32, path string) *BlockReader {
	return &BlockReader{r: r, blockLength: blockLength, path: path}
}

// Next returns the next Block in ascending index order. ok is false once
// the stream is exhausted; a read failure returns a non-nil err wrapped in
// an *IOError.
func (br *BlockReader) Next() (block Block, ok bool, err error) {
	if br.done {
		return Block{}, false, nil
	}
	buf := make([]byte, br.blockLength)
	n, readErr := io.ReadFull(br.r, buf)
	switch {
	case readErr == nil:
		block = Block{Index: br.index, Bytes: buf}
		br.index++
		return block, true, nil
	case errors.Is(readErr, io.EOF):
		br.done = true
		if n == 0 && br.index == 0 {
			// Empty input: exactly one empty leaf.
			return Block{Index: 0, Bytes: []byte{}}, true, nil
		}
		return Block{}, false, nil
	case errors.Is(readErr, io.ErrUnexpectedEOF):
		br.done = true
		block = Block{Index: br.index, Bytes: buf[:n]}
		br.index++
		return block, true, nil
	default:
		br.done = true
		return Block{}, false, &IOError{Path: br.path, Err: readErr}
	}
}
