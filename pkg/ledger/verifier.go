package ledger

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

// Verifier implements merkle.Sink as the reference comparator: it compares
// a live re-hash's node stream against a previously parsed ledger.
// Mismatches are non-fatal (§7): Accept never returns an error for one, so
// the pipeline keeps running and every mismatch in the file gets reported.
type Verifier struct {
	parsed     *ParsedLedger
	byFile     []map[merkle.NodeID][]byte
	mismatches []*merkle.VerifyMismatchError
	cur        uint32
}

var _ merkle.Sink = (*Verifier)(nil)

// NewVerifier builds the expected-hash lookup from a parsed ledger.
func NewVerifier(parsed *ParsedLedger) *Verifier {
	byFile := make([]map[merkle.NodeID][]byte, len(parsed.Files))
	for i := range byFile {
		byFile[i] = make(map[merkle.NodeID][]byte)
	}
	for _, rec := range parsed.Records {
		if int(rec.FileIndex) < len(byFile) {
			byFile[rec.FileIndex][rec.NodeID] = rec.Hash
		}
	}
	return &Verifier{parsed: parsed, byFile: byFile}
}

func (v *Verifier) BeginFile(fileIndex uint32, path string, fileSize uint64) error {
	v.cur = fileIndex
	return nil
}

func (v *Verifier) Accept(record merkle.NodeRecord) error {
	if v.parsed.Short {
		// A short-format ledger records only the root per file; there is
		// nothing to compare per-node.
		return nil
	}
	expected, ok := v.byFile[record.FileIndex][record.NodeID]
	if !ok {
		return &merkle.LedgerParseError{
			Reason: fmt.Sprintf("ledger has no record for file %d node (level=%d offset=%d)",
				record.FileIndex, record.NodeID.Level, record.NodeID.Offset),
		}
	}
	if !bytes.Equal(expected, record.Hash) {
		v.mismatches = append(v.mismatches, &merkle.VerifyMismatchError{
			FileIndex: record.FileIndex,
			Node:      record.NodeID,
			Expected:  expected,
			Actual:    record.Hash,
		})
	}
	return nil
}

func (v *Verifier) EndFile(rootHash []byte) error {
	if v.parsed.Short {
		expected := v.parsed.Roots[v.cur]
		if !bytes.Equal(expected, rootHash) {
			v.mismatches = append(v.mismatches, &merkle.VerifyMismatchError{
				FileIndex: v.cur,
				Expected:  expected,
				Actual:    rootHash,
			})
		}
	}
	return nil
}

func (v *Verifier) Finish() error {
	return nil
}

// Mismatches returns every mismatch found across all verified files.
func (v *Verifier) Mismatches() []*merkle.VerifyMismatchError {
	return v.mismatches
}

// Err aggregates all mismatches into one error via go-multierror, or nil
// if verification found none.
func (v *Verifier) Err() error {
	if len(v.mismatches) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, m := range v.mismatches {
		result = multierror.Append(result, m)
	}
	return result.ErrorOrNil()
}
