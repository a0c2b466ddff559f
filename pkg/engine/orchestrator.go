// Package engine wires the merkle pipeline to a Sink across a batch of
// files: the "tree orchestrator" of the design (component 6). It owns file
// I/O and per-file logging; pkg/merkle does no file I/O and logs only
// through an optional caller-supplied logger, so it can be driven by tests
// or other callers without a filesystem or a logger in hand.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

// Orchestrator drives one merkle tree per input file, sequentially, and
// streams the result into a shared Sink. file_index is assigned by input
// position starting at 0; there is no cross-file parallelism.
type Orchestrator struct {
	Jobs   int
	Logger logrus.FieldLogger
}

// New creates an Orchestrator with the given worker-pool size and logger.
// A nil logger disables logging.
func New(jobs int, logger logrus.FieldLogger) *Orchestrator {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(discardWriter{})
		logger = l
	}
	return &Orchestrator{Jobs: jobs, Logger: logger}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Run hashes every path in order, feeding sink, and calls sink.Finish once
// all files are done. The first fatal error (I/O failure, or an error
// returned by the sink itself) aborts the whole run; per spec, hash
// mismatches during verification are not fatal and never surface here.
func (o *Orchestrator) Run(ctx context.Context, paths []string, params merkle.TreeParams, sink merkle.Sink) error {
	if err := params.Validate(); err != nil {
		return err
	}
	for i, path := range paths {
		if err := o.runFile(ctx, uint32(i), path, params, sink); err != nil {
			return err
		}
	}
	return sink.Finish()
}

func (o *Orchestrator) runFile(ctx context.Context, fileIndex uint32, path string, params merkle.TreeParams, sink merkle.Sink) error {
	f, err := os.Open(path)
	if err != nil {
		return &merkle.IOError{Path: path, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return &merkle.IOError{Path: path, Err: err}
	}
	size := uint64(stat.Size())

	o.Logger.WithField("file", path).Info("hashing")

	if err := sink.BeginFile(fileIndex, path, size); err != nil {
		return err
	}

	root, err := merkle.Run(ctx, merkle.RunOptions{
		Reader:    f,
		Path:      path,
		FileSize:  size,
		Params:    params,
		FileIndex: fileIndex,
		Jobs:      o.Jobs,
		Accept:    sink.Accept,
		Logger:    o.Logger,
	})
	if err != nil {
		return err
	}

	if err := sink.EndFile(root); err != nil {
		return err
	}

	o.Logger.WithFields(logrus.Fields{
		"file": path,
		"hash": fmt.Sprintf("%x", root),
	}).Debug("done")
	return nil
}
