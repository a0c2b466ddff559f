package ledger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rlee287/merkle-tree-checksum/pkg/ledger"
	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

func writeLedger(t *testing.T, params merkle.TreeParams, files []ledger.FileMeta, data [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	hashFiles(t, &buf, params, false, files, data)
	return buf.Bytes()
}

func TestVerifierCleanRoundTrip(t *testing.T) {
	params := merkle.TreeParams{Algo: merkle.SHA256, BlockLength: 4, BranchFactor: 4}
	files := []ledger.FileMeta{{Path: "clean.bin", Size: 20}}
	data := [][]byte{make([]byte, 20)}
	for i := range data[0] {
		data[0][i] = byte(i)
	}
	ledgerBytes := writeLedger(t, params, files, data)

	parsed, err := ledger.Parse(bytes.NewReader(ledgerBytes))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	verifier := ledger.NewVerifier(parsed)

	root, err := merkle.Run(context.Background(), merkle.RunOptions{
		Reader:    bytes.NewReader(data[0]),
		FileSize:  uint64(len(data[0])),
		Params:    params,
		FileIndex: 0,
		Accept:    verifier.Accept,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if err := verifier.EndFile(root); err != nil {
		t.Fatalf("EndFile error: %v", err)
	}
	if len(verifier.Mismatches()) != 0 {
		t.Fatalf("expected no mismatches on an unchanged file, got %d", len(verifier.Mismatches()))
	}
	if err := verifier.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

// TestVerifierDetectsCorruption reproduces scenario 6: corrupting one byte
// of block 2 must surface at least one mismatch whose file_byte range
// contains the corrupted offset.
func TestVerifierDetectsCorruption(t *testing.T) {
	params := merkle.TreeParams{Algo: merkle.SHA256, BlockLength: 4, BranchFactor: 4}
	files := []ledger.FileMeta{{Path: "corrupt.bin", Size: 20}}
	original := make([]byte, 20)
	for i := range original {
		original[i] = byte(i)
	}
	ledgerBytes := writeLedger(t, params, files, [][]byte{original})

	corrupted := append([]byte(nil), original...)
	corruptedOffset := 9 // within block index 2 (bytes [8,12))
	corrupted[corruptedOffset] ^= 0xFF

	parsed, err := ledger.Parse(bytes.NewReader(ledgerBytes))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	verifier := ledger.NewVerifier(parsed)
	root, err := merkle.Run(context.Background(), merkle.RunOptions{
		Reader:    bytes.NewReader(corrupted),
		FileSize:  uint64(len(corrupted)),
		Params:    params,
		FileIndex: 0,
		Accept:    verifier.Accept,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	_ = verifier.EndFile(root)

	mismatches := verifier.Mismatches()
	if len(mismatches) == 0 {
		t.Fatal("expected at least one mismatch after corrupting a byte")
	}
	var found bool
	for _, m := range mismatches {
		if m.Node.Level != 0 {
			continue
		}
		r := parsed.Records[0]
		for _, rec := range parsed.Records {
			if rec.FileIndex == m.FileIndex && rec.NodeID == m.Node {
				r = rec
				break
			}
		}
		if r.Range.FileByteStart <= uint64(corruptedOffset) && uint64(corruptedOffset) < r.Range.FileByteEnd {
			found = true
		}
	}
	if !found {
		t.Error("no leaf mismatch's byte range contains the corrupted offset")
	}
	if verifier.Err() == nil {
		t.Error("Err() should aggregate the mismatches into a non-nil error")
	}
}
