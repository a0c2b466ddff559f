package ledger

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

// ParsedLedger is the structured result of parsing a ledger file: enough
// to drive a Verifier without re-deriving the tree parameters from flags.
type ParsedLedger struct {
	Params  merkle.TreeParams
	Short   bool
	Files   []FileMeta
	Records []merkle.NodeRecord // empty when Short is true
	Roots   [][]byte            // one per file, in file order
}

var (
	hashFunctionRe = regexp.MustCompile(`^Hash function: (\S+)$`)
	blockSizeRe    = regexp.MustCompile(`^Block size: (\d+)$`)
	branchFactorRe = regexp.MustCompile(`^Branching factor: (\d+)$`)
	versionRe      = regexp.MustCompile(`^merkle_tree_checksum v(\S+)$`)
	fileLineRe     = regexp.MustCompile(`^  "((?:[^"\\]|\\.)*)" (0x[0-9a-fA-F]+) bytes$`)
	recordLineRe   = regexp.MustCompile(`^\[(\d+)\] \[(\d+)-(\d+)\] \[(\d+)-(\d+)\] ([0-9a-fA-F]+)$`)
	shortLineRe    = regexp.MustCompile(`^([0-9a-fA-F]+)  "((?:[^"\\]|\\.)*)"$`)
)

// Parse reads a ledger written by Writer and returns its structured form.
// It is tolerant of header option line ordering (§6) but otherwise
// expects the exact current-version layout; malformed input is reported
// with the offending line number.
func Parse(r io.Reader) (*ParsedLedger, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	nextLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNum++
		return scanner.Text(), true
	}

	line, ok := nextLine()
	if !ok {
		return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "empty file, expected version header"}
	}
	m := versionRe.FindStringSubmatch(line)
	if m == nil {
		return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "missing merkle_tree_checksum version header"}
	}
	if m[1] != Version {
		return nil, &merkle.LedgerParseError{Line: lineNum, Reason: fmt.Sprintf("unsupported ledger version %q (expected %q)", m[1], Version)}
	}

	var algoName string
	var blockLength, branchFactor uint64
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		line, ok = nextLine()
		if !ok {
			return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "truncated header"}
		}
		switch {
		case hashFunctionRe.MatchString(line):
			algoName = hashFunctionRe.FindStringSubmatch(line)[1]
			seen["hash"] = true
		case blockSizeRe.MatchString(line):
			blockLength, _ = strconv.ParseUint(blockSizeRe.FindStringSubmatch(line)[1], 10, 32)
			seen["block"] = true
		case branchFactorRe.MatchString(line):
			branchFactor, _ = strconv.ParseUint(branchFactorRe.FindStringSubmatch(line)[1], 10, 32)
			seen["branch"] = true
		default:
			return nil, &merkle.LedgerParseError{Line: lineNum, Reason: fmt.Sprintf("unrecognized header line %q", line)}
		}
	}
	if !seen["hash"] || !seen["block"] || !seen["branch"] {
		return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "header missing a required option line"}
	}

	algo, err := merkle.ParseAlgorithm(algoName)
	if err != nil {
		return nil, &merkle.LedgerParseError{Line: lineNum, Reason: err.Error()}
	}
	params := merkle.TreeParams{Algo: algo, BlockLength: uint32(blockLength), BranchFactor: uint32(branchFactor)}
	if err := params.Validate(); err != nil {
		return nil, &merkle.LedgerParseError{Line: lineNum, Reason: err.Error()}
	}

	line, ok = nextLine()
	if !ok {
		return &ParsedLedger{Params: params}, nil
	}

	result := &ParsedLedger{Params: params}

	if line == "Files:" {
		result.Short = false
		for {
			line, ok = nextLine()
			if !ok {
				break
			}
			fm := fileLineRe.FindStringSubmatch(line)
			if fm == nil {
				break
			}
			path, err := UnquotePath(fm[1])
			if err != nil {
				return nil, &merkle.LedgerParseError{Line: lineNum, Reason: err.Error()}
			}
			size, err := strconv.ParseUint(strings.TrimPrefix(fm[2], "0x"), 16, 64)
			if err != nil {
				return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "bad file size"}
			}
			result.Files = append(result.Files, FileMeta{Path: path, Size: size})
		}
		result.Roots = make([][]byte, len(result.Files))
		for ok {
			rm := recordLineRe.FindStringSubmatch(line)
			if rm == nil {
				return nil, &merkle.LedgerParseError{Line: lineNum, Reason: fmt.Sprintf("expected record line, got %q", line)}
			}
			fileIndex, _ := strconv.ParseUint(rm[1], 10, 32)
			treeStart, _ := strconv.ParseUint(rm[2], 10, 64)
			treeEnd, _ := strconv.ParseUint(rm[3], 10, 64)
			byteStart, _ := strconv.ParseUint(rm[4], 10, 64)
			byteEnd, _ := strconv.ParseUint(rm[5], 10, 64)
			hashBytes, err := decodeHex(rm[6])
			if err != nil {
				return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "bad hash hex"}
			}
			nodeID, err := nodeIDFromSpan(treeStart, treeEnd, uint64(params.BranchFactor))
			if err != nil {
				return nil, &merkle.LedgerParseError{Line: lineNum, Reason: err.Error()}
			}
			rec := merkle.NodeRecord{
				FileIndex: uint32(fileIndex),
				NodeID:    nodeID,
				Range: merkle.NodeRange{
					TreeBlockStart: treeStart,
					TreeBlockEnd:   treeEnd,
					FileByteStart:  byteStart,
					FileByteEnd:    byteEnd,
				},
				Hash: hashBytes,
			}
			result.Records = append(result.Records, rec)
			if int(fileIndex) < len(result.Roots) {
				// The root is always the final record for a file; later
				// records for the same file (there are none after it)
				// would overwrite this, but post-order guarantees the
				// last record seen per file is its root.
				result.Roots[fileIndex] = hashBytes
			}
			line, ok = nextLine()
		}
		return result, nil
	}

	result.Short = true
	for ; ok; line, ok = nextLine() {
		sm := shortLineRe.FindStringSubmatch(line)
		if sm == nil {
			return nil, &merkle.LedgerParseError{Line: lineNum, Reason: fmt.Sprintf("expected short summary line, got %q", line)}
		}
		hashBytes, err := decodeHex(sm[1])
		if err != nil {
			return nil, &merkle.LedgerParseError{Line: lineNum, Reason: "bad hash hex"}
		}
		path, err := UnquotePath(sm[2])
		if err != nil {
			return nil, &merkle.LedgerParseError{Line: lineNum, Reason: err.Error()}
		}
		result.Files = append(result.Files, FileMeta{Path: path})
		result.Roots = append(result.Roots, hashBytes)
	}
	return result, nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// nodeIDFromSpan recovers (level, offset) from a node's tree-block range,
// since the ledger only records the range, not the coordinates directly.
func nodeIDFromSpan(start, end, branch uint64) (merkle.NodeID, error) {
	span := end - start
	if span == 0 {
		return merkle.NodeID{}, fmt.Errorf("zero-width node range")
	}
	var level uint32
	pow := uint64(1)
	for pow < span {
		pow *= branch
		level++
	}
	if pow != span {
		return merkle.NodeID{}, fmt.Errorf("node range width %d is not a power of branch factor %d", span, branch)
	}
	if start%span != 0 {
		return merkle.NodeID{}, fmt.Errorf("node range start %d misaligned for width %d", start, span)
	}
	return merkle.NodeID{Level: level, Offset: start / span}, nil
}
