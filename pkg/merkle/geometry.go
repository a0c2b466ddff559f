package merkle

// Geometry is the pure arithmetic derived from (file_size, block_length,
// branch_factor): how many leaves the file has, how tall the tree is, how
// many nodes sit at each level, and the block/byte range any node covers.
// It holds no hashes and does no I/O.
type Geometry struct {
	FileSize uint64
	Params   TreeParams

	// levelSizes[0] is the leaf count; levelSizes[Height] == 1 (the root).
	levelSizes []uint64
}

// NewGeometry computes the tree shape for a file of the given size under
// params. params must already be Validate()d.
func NewGeometry(fileSize uint64, params TreeParams) Geometry {
	blockCount := BlockCount(fileSize, uint64(params.BlockLength))
	sizes := []uint64{blockCount}
	branch := uint64(params.BranchFactor)
	for sizes[len(sizes)-1] > 1 {
		prev := sizes[len(sizes)-1]
		sizes = append(sizes, ceilDiv(prev, branch))
	}
	return Geometry{FileSize: fileSize, Params: params, levelSizes: sizes}
}

// BlockCount returns ceil(file_size / block_length), minimum 1.
func BlockCount(fileSize, blockLength uint64) uint64 {
	if blockLength == 0 {
		return 1
	}
	n := ceilDiv(fileSize, blockLength)
	if n == 0 {
		n = 1
	}
	return n
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

// LeafCount is the number of level-0 nodes (blocks).
func (g Geometry) LeafCount() uint64 {
	return g.levelSizes[0]
}

// Height is the root's level index: 0 when the file has exactly one block
// (the leaf is the root, no synthetic parent), otherwise the number of
// interior levels above the leaves.
func (g Geometry) Height() uint32 {
	return uint32(len(g.levelSizes) - 1)
}

// LevelCount is the total number of levels in the tree (Height()+1).
func (g Geometry) LevelCount() int {
	return len(g.levelSizes)
}

// NodeCountAtLevel returns how many nodes exist at the given level.
func (g Geometry) NodeCountAtLevel(level uint32) uint64 {
	if int(level) >= len(g.levelSizes) {
		return 0
	}
	return g.levelSizes[level]
}

// Root is the NodeID of the tree's root node.
func (g Geometry) Root() NodeID {
	return NodeID{Level: g.Height(), Offset: 0}
}

// ChildCount returns m, the number of actual children a node at
// (level+1, offset) has among level's nodes, where m <= branch_factor.
// The tail of an incomplete group has fewer than branch_factor children.
func (g Geometry) ChildCount(parentLevel uint32, parentOffset uint64) uint64 {
	if parentLevel == 0 {
		return 0
	}
	childLevel := parentLevel - 1
	branch := uint64(g.Params.BranchFactor)
	total := g.NodeCountAtLevel(childLevel)
	start := parentOffset * branch
	if start >= total {
		return 0
	}
	remaining := total - start
	if remaining > branch {
		return branch
	}
	return remaining
}

// branchPow returns branch_factor^level.
func (g Geometry) branchPow(level uint32) uint64 {
	branch := uint64(g.Params.BranchFactor)
	pow := uint64(1)
	for i := uint32(0); i < level; i++ {
		pow *= branch
	}
	return pow
}

// NodeRange computes the block/byte extents covered by the node at
// (level, offset). TreeBlockEnd is rounded up to branch_factor^level and is
// not clamped to the actual block count; FileByteEnd is clamped to
// FileSize.
func (g Geometry) NodeRange(level uint32, offset uint64) NodeRange {
	pow := g.branchPow(level)
	blockLength := uint64(g.Params.BlockLength)
	start := offset * pow
	end := start + pow
	byteStart := start * blockLength
	if byteStart > g.FileSize {
		byteStart = g.FileSize
	}
	byteEnd := end * blockLength
	if byteEnd > g.FileSize {
		byteEnd = g.FileSize
	}
	return NodeRange{
		TreeBlockStart: start,
		TreeBlockEnd:   end,
		FileByteStart:  byteStart,
		FileByteEnd:    byteEnd,
	}
}
