package merkle_test

import (
	"testing"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

func params(algo merkle.Algorithm, blockLength, branchFactor uint32) merkle.TreeParams {
	return merkle.TreeParams{Algo: algo, BlockLength: blockLength, BranchFactor: branchFactor}
}

func TestBlockCount(t *testing.T) {
	cases := []struct {
		fileSize, blockLength, want uint64
	}{
		{0, 4, 1},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{16, 4, 4},
		{20, 4, 5},
	}
	for _, c := range cases {
		if got := merkle.BlockCount(c.fileSize, c.blockLength); got != c.want {
			t.Errorf("BlockCount(%d, %d) = %d, want %d", c.fileSize, c.blockLength, got, c.want)
		}
	}
}

func TestGeometryHeightSingleBlock(t *testing.T) {
	g := merkle.NewGeometry(4, params(merkle.SHA256, 4, 4))
	if g.LeafCount() != 1 {
		t.Fatalf("LeafCount() = %d, want 1", g.LeafCount())
	}
	if g.Height() != 0 {
		t.Fatalf("Height() = %d, want 0 (root is the leaf)", g.Height())
	}
	if g.Root() != (merkle.NodeID{Level: 0, Offset: 0}) {
		t.Fatalf("Root() = %+v, want level 0 offset 0", g.Root())
	}
}

// TestGeometryScenario1 exercises the 16-byte, block_length=4,
// branch_factor=4 worked example: 4 leaves folding directly into one root.
func TestGeometryScenario1(t *testing.T) {
	g := merkle.NewGeometry(16, params(merkle.SHA256, 4, 4))
	if g.LeafCount() != 4 {
		t.Fatalf("LeafCount() = %d, want 4", g.LeafCount())
	}
	if g.Height() != 1 {
		t.Fatalf("Height() = %d, want 1", g.Height())
	}
	if got := g.ChildCount(1, 0); got != 4 {
		t.Fatalf("ChildCount(1, 0) = %d, want 4", got)
	}
}

// TestGeometryScenario2 exercises the 20-byte example: 5 leaves, an
// interior parent over L0-L3, a singleton interior over L4, and a root
// over both interiors.
func TestGeometryScenario2(t *testing.T) {
	g := merkle.NewGeometry(20, params(merkle.SHA256, 4, 4))
	if g.LeafCount() != 5 {
		t.Fatalf("LeafCount() = %d, want 5", g.LeafCount())
	}
	if g.Height() != 2 {
		t.Fatalf("Height() = %d, want 2", g.Height())
	}
	if got := g.NodeCountAtLevel(1); got != 2 {
		t.Fatalf("NodeCountAtLevel(1) = %d, want 2", got)
	}
	if got := g.ChildCount(1, 0); got != 4 {
		t.Fatalf("ChildCount(1, 0) = %d, want 4 (full group)", got)
	}
	if got := g.ChildCount(1, 1); got != 1 {
		t.Fatalf("ChildCount(1, 1) = %d, want 1 (singleton tail group, not elided)", got)
	}
}

// TestGeometryScenario4 exercises the crc32/block_length=1/branch_factor=2
// example over "abc": 3 leaves, tree height 2, and a root tree-block range
// that overshoots the actual leaf count.
func TestGeometryScenario4(t *testing.T) {
	g := merkle.NewGeometry(3, params(merkle.CRC32, 1, 2))
	if g.LeafCount() != 3 {
		t.Fatalf("LeafCount() = %d, want 3", g.LeafCount())
	}
	if g.Height() != 2 {
		t.Fatalf("Height() = %d, want 2", g.Height())
	}
	wantRanges := []merkle.NodeRange{
		{TreeBlockStart: 0, TreeBlockEnd: 1, FileByteStart: 0, FileByteEnd: 1},
		{TreeBlockStart: 1, TreeBlockEnd: 2, FileByteStart: 1, FileByteEnd: 2},
		{TreeBlockStart: 2, TreeBlockEnd: 3, FileByteStart: 2, FileByteEnd: 3},
	}
	for i, want := range wantRanges {
		if got := g.NodeRange(0, uint64(i)); got != want {
			t.Errorf("NodeRange(0, %d) = %+v, want %+v", i, got, want)
		}
	}
	root := g.NodeRange(g.Root().Level, g.Root().Offset)
	if root.TreeBlockEnd != 4 {
		t.Errorf("root TreeBlockEnd = %d, want 4 (rounded up past the 3 real leaves)", root.TreeBlockEnd)
	}
	if root.FileByteEnd != 3 {
		t.Errorf("root FileByteEnd = %d, want 3 (clamped to file size)", root.FileByteEnd)
	}
}

func TestTreeParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		p       merkle.TreeParams
		wantErr bool
	}{
		{"valid", params(merkle.SHA256, 4, 4), false},
		{"zero block length", params(merkle.SHA256, 0, 4), true},
		{"branch factor 1", params(merkle.SHA256, 4, 1), true},
		{"unknown algorithm", params(merkle.Algorithm(200), 4, 4), true},
	}
	for _, c := range cases {
		err := c.p.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", c.name, err, c.wantErr)
		}
		if err != nil {
			var bad *merkle.BadParamsError
			if !isBadParamsError(err, &bad) {
				t.Errorf("%s: error is not a *BadParamsError: %v", c.name, err)
			}
		}
	}
}

func isBadParamsError(err error, target **merkle.BadParamsError) bool {
	b, ok := err.(*merkle.BadParamsError)
	if ok {
		*target = b
	}
	return ok
}
