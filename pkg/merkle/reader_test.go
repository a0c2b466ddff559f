package merkle_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

func drainBlocks(t *testing.T, r io.Reader, blockLength uint32) []merkle.Block {
	t.Helper()
	br := merkle.NewBlockReader(r, blockLength, "")
	var blocks []merkle.Block
	for {
		block, ok, err := br.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if !ok {
			return blocks
		}
		blocks = append(blocks, block)
	}
}

func TestBlockReaderEmptyInput(t *testing.T) {
	blocks := drainBlocks(t, bytes.NewReader(nil), 4)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want exactly 1 for an empty input", len(blocks))
	}
	if blocks[0].Index != 0 || len(blocks[0].Bytes) != 0 {
		t.Errorf("blocks[0] = %+v, want index 0 and empty bytes", blocks[0])
	}
}

func TestBlockReaderExactMultiple(t *testing.T) {
	data := []byte("0123456789AB") // 12 bytes, block length 4 -> 3 full blocks
	blocks := drainBlocks(t, bytes.NewReader(data), 4)
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	for i, want := range [][]byte{[]byte("0123"), []byte("4567"), []byte("89AB")} {
		if !bytes.Equal(blocks[i].Bytes, want) {
			t.Errorf("blocks[%d] = %q, want %q", i, blocks[i].Bytes, want)
		}
		if blocks[i].Index != uint64(i) {
			t.Errorf("blocks[%d].Index = %d, want %d", i, blocks[i].Index, i)
		}
	}
}

func TestBlockReaderShortTail(t *testing.T) {
	data := []byte("0123456789") // 10 bytes, block length 4 -> 4,4,2
	blocks := drainBlocks(t, bytes.NewReader(data), 4)
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	if !bytes.Equal(blocks[2].Bytes, []byte("89")) {
		t.Errorf("final block = %q, want \"89\"", blocks[2].Bytes)
	}
}

type errReader struct{ err error }

func (r errReader) Read(p []byte) (int, error) { return 0, r.err }

func TestBlockReaderWrapsReadError(t *testing.T) {
	sentinel := errors.New("boom")
	br := merkle.NewBlockReader(errReader{sentinel}, 4, "input.bin")
	_, _, err := br.Next()
	if err == nil {
		t.Fatal("expected an error")
	}
	var ioErr *merkle.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("error is %T, want *merkle.IOError", err)
	}
	if ioErr.Path != "input.bin" {
		t.Errorf("IOError.Path = %q, want %q", ioErr.Path, "input.bin")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Unwrap chain does not reach the underlying read error")
	}
}
