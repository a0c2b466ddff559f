package merkle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunOptions configures one file's pass through the pipeline.
type RunOptions struct {
	Reader io.Reader
	// Path identifies Reader's source for error messages only (e.g. a
	// read failure mid-file surfaces as an *IOError naming this path). It
	// has no effect on hashing and may be left empty for readers with no
	// meaningful path.
	Path      string
	FileSize  uint64
	Params    TreeParams
	FileIndex uint32
	// Jobs selects the worker pool size. 0 runs the pipeline inline on the
	// calling goroutine; 1 or more spawns that many hashing workers behind
	// bounded channels. Output is byte-identical across all values.
	Jobs int
	// Accept receives every finalized NodeRecord in canonical post-order.
	// It is called from a single goroutine and may block (backpressure).
	Accept func(NodeRecord) error
	// Logger receives one Debug record per finalized node (file index,
	// level, offset, and fold sequence number), letting a caller
	// reconstruct fold order. When Jobs >= 1, a failed run is also logged
	// once before its error is returned: at Warn if it ended in
	// cancellation, at Error otherwise. A nil Logger disables all of this
	// logging.
	Logger logrus.FieldLogger
}

func (o RunOptions) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return nopLogger
}

var nopLogger = func() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Run drives the parallel hash pipeline for one file: it reads blocks,
// computes leaf hashes (optionally across a worker pool), folds them
// upward into interior hashes in strict canonical order, and calls
// opts.Accept for every node. It returns the file's root hash.
//
// Any read error or Accept error cancels the pipeline: outstanding workers
// are signaled to stop and the first such error is returned.
func Run(ctx context.Context, opts RunOptions) ([]byte, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	geometry := NewGeometry(opts.FileSize, opts.Params)
	seq := newSequencer(geometry, opts.Params.Algo, opts.FileIndex, opts.Accept, opts.logger())

	if opts.Jobs <= 0 {
		return runInline(opts, geometry, seq)
	}
	return runParallel(ctx, opts, geometry, seq)
}

// runInline hashes and folds on the calling goroutine only. Blocks arrive
// from the reader already in order, so no reorder buffer is needed.
func runInline(opts RunOptions, geometry Geometry, seq *sequencer) ([]byte, error) {
	reader := NewBlockReader(opts.Reader, opts.Params.BlockLength, opts.Path)
	for {
		block, ok, err := reader.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		hash := LeafHash(opts.Params.Algo, block.Bytes)
		if err := seq.feed(0, block.Index, hash); err != nil {
			return nil, err
		}
	}
	if seq.rootHash == nil {
		return nil, fmt.Errorf("merkle: pipeline finished without producing a root hash")
	}
	_ = geometry
	return seq.rootHash, nil
}

type leafResult struct {
	index uint64
	hash  []byte
}

// runParallel implements the bounded producer/worker-pool/sequencer
// architecture from spec section 4.4: a single reader goroutine feeds a
// bounded block channel; opts.Jobs workers compute leaf hashes onto a
// bounded result channel; a single sequencer goroutine reorders leaves by
// index and folds them upward, calling opts.Accept in canonical order.
func runParallel(ctx context.Context, opts RunOptions, geometry Geometry, seq *sequencer) ([]byte, error) {
	capacity := 2 * opts.Jobs
	if capacity < 1 {
		capacity = 1
	}
	blockCh := make(chan Block, capacity)
	leafCh := make(chan leafResult, capacity)

	log := opts.logger()

	g, ctx := errgroup.WithContext(ctx)

	// cause records the first goroutine-local error that actually
	// triggered the abort, as opposed to a goroutine that merely observed
	// ctx.Done() after some sibling already failed. errgroup.Wait returns
	// whichever goroutine's return value it sees first, which races
	// against the ctx.Done() branches below; cause lets the caller learn
	// the real root error even when a bystander goroutine wins that race.
	var causeOnce sync.Once
	var cause error
	recordCause := func(err error) {
		causeOnce.Do(func() { cause = err })
	}

	g.Go(func() error {
		defer close(blockCh)
		reader := NewBlockReader(opts.Reader, opts.Params.BlockLength, opts.Path)
		for {
			block, ok, err := reader.Next()
			if err != nil {
				recordCause(err)
				return err
			}
			if !ok {
				return nil
			}
			select {
			case blockCh <- block:
			case <-ctx.Done():
				return &CancelledError{Cause: ctx.Err()}
			}
		}
	})

	var workerWG sync.WaitGroup
	workerWG.Add(opts.Jobs)
	for i := 0; i < opts.Jobs; i++ {
		g.Go(func() error {
			defer workerWG.Done()
			for {
				select {
				case block, ok := <-blockCh:
					if !ok {
						return nil
					}
					hash := LeafHash(opts.Params.Algo, block.Bytes)
					select {
					case leafCh <- leafResult{index: block.Index, hash: hash}:
					case <-ctx.Done():
						return &CancelledError{Cause: ctx.Err()}
					}
				case <-ctx.Done():
					return &CancelledError{Cause: ctx.Err()}
				}
			}
		})
	}

	g.Go(func() error {
		workerWG.Wait()
		close(leafCh)
		return nil
	})

	g.Go(func() error {
		leafCount := geometry.LeafCount()
		reorder := make(map[uint64][]byte)
		var cursor uint64
		for cursor < leafCount {
			select {
			case res, ok := <-leafCh:
				if !ok {
					if ctx.Err() != nil {
						// The workers stopped because the run was
						// cancelled; this is not a root cause.
						return &CancelledError{Cause: ctx.Err()}
					}
					err := errors.New("merkle: leaf channel closed before all leaves arrived")
					recordCause(err)
					return err
				}
				reorder[res.index] = res.hash
				for {
					hash, ok := reorder[cursor]
					if !ok {
						break
					}
					delete(reorder, cursor)
					if err := seq.feed(0, cursor, hash); err != nil {
						recordCause(err)
						return err
					}
					cursor++
				}
			case <-ctx.Done():
				return &CancelledError{Cause: ctx.Err()}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		var cancelled *CancelledError
		if errors.As(err, &cancelled) {
			// This particular goroutine only observed cancellation; the
			// real failure, if one of its siblings recorded it, is more
			// useful to the caller than a bare "context canceled".
			if cause != nil {
				log.WithError(cause).Warn("merkle: pipeline cancelled after a fatal error")
				return nil, &CancelledError{Cause: cause}
			}
			log.WithError(err).Warn("merkle: pipeline cancelled")
			return nil, err
		}
		log.WithError(err).Error("merkle: pipeline aborted")
		return nil, err
	}
	if seq.rootHash == nil {
		return nil, fmt.Errorf("merkle: pipeline finished without producing a root hash")
	}
	return seq.rootHash, nil
}

// sequencer folds finalized child hashes upward into their parents and
// emits every node, leaf and interior, in canonical depth-first
// post-order. feed must be called with strictly increasing offsets within
// a level; the pipeline's reorder buffer guarantees this for leaves, and
// folding itself guarantees it for interior levels.
type sequencer struct {
	geometry  Geometry
	algo      Algorithm
	fileIndex uint32
	accept    func(NodeRecord) error
	log       logrus.FieldLogger

	groupBuf    [][][]byte
	groupOffset []uint64
	rootHash    []byte
	fed         uint64
}

func newSequencer(geometry Geometry, algo Algorithm, fileIndex uint32, accept func(NodeRecord) error, log logrus.FieldLogger) *sequencer {
	return &sequencer{
		geometry:    geometry,
		algo:        algo,
		fileIndex:   fileIndex,
		accept:      accept,
		log:         log,
		groupBuf:    make([][][]byte, geometry.LevelCount()),
		groupOffset: make([]uint64, geometry.LevelCount()),
	}
}

func (s *sequencer) feed(level uint32, offset uint64, hash []byte) error {
	record := NodeRecord{
		FileIndex: s.fileIndex,
		NodeID:    NodeID{Level: level, Offset: offset},
		Range:     s.geometry.NodeRange(level, offset),
		Hash:      hash,
	}
	s.fed++
	s.log.WithFields(logrus.Fields{
		"file_index": s.fileIndex,
		"level":      level,
		"offset":     offset,
		"seq":        s.fed,
	}).Debug("merkle: node finalized")
	if err := s.accept(record); err != nil {
		return err
	}
	if level == s.geometry.Height() {
		s.rootHash = hash
		return nil
	}
	s.groupBuf[level] = append(s.groupBuf[level], hash)
	parentOffset := s.groupOffset[level+1]
	expected := s.geometry.ChildCount(level+1, parentOffset)
	if uint64(len(s.groupBuf[level])) < expected {
		return nil
	}
	children := s.groupBuf[level]
	s.groupBuf[level] = nil
	s.groupOffset[level+1]++
	parentHash := InteriorHash(s.algo, children)
	return s.feed(level+1, parentOffset, parentHash)
}
