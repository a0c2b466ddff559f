package merkle

// Sink is the abstract consumer of a file's node-record stream. The
// orchestrator serializes every call to a Sink; implementations need not
// be safe for concurrent use. Known implementations are the ledger writer
// (package ledger) and the verifier's expected-vs-actual comparator.
type Sink interface {
	// BeginFile announces a new file about to be hashed.
	BeginFile(fileIndex uint32, path string, fileSize uint64) error
	// Accept receives one finalized node record, in canonical order.
	Accept(record NodeRecord) error
	// EndFile is called once per file, after its last Accept, with the
	// file's root hash.
	EndFile(rootHash []byte) error
	// Finish is called once after all files have been processed.
	Finish() error
}
