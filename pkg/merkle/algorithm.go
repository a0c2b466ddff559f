// Package merkle implements the block-oriented, domain-separated Merkle
// tree hashing engine used by merkle-tree-checksum. It partitions a byte
// stream into fixed-size blocks, builds a balanced k-ary tree of hashes
// over those blocks, and streams every finalized node to a caller-supplied
// sink in a stable, reproducible order regardless of the number of worker
// goroutines used to compute it.
package merkle

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"hash/crc32"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies one of the supported digest variants. The zero value
// is not a valid algorithm.
type Algorithm uint8

const (
	CRC32 Algorithm = iota + 1
	SHA224
	SHA256
	SHA384
	SHA512
	SHA512_224
	SHA512_256
	SHA3_224
	SHA3_256
	SHA3_384
	SHA3_512
	BLAKE2b512
	BLAKE2s256
	BLAKE3
)

// algoInfo carries the per-variant constructor and output length. Output
// length is part of the variant's identity, not a runtime-only field: two
// hashers of the same Algorithm always produce the same length digest.
type algoInfo struct {
	name    string
	size    int
	newHash func() hash.Hash
}

var registry = map[Algorithm]algoInfo{
	CRC32:      {"crc32", crc32.Size, func() hash.Hash { return crc32.NewIEEE() }},
	SHA224:     {"sha224", sha256.Size224, sha256.New224},
	SHA256:     {"sha256", sha256.Size, sha256.New},
	SHA384:     {"sha384", sha512.Size384, sha512.New384},
	SHA512:     {"sha512", sha512.Size, sha512.New},
	SHA512_224: {"sha512_224", sha512.Size224, sha512.New512_224},
	SHA512_256: {"sha512_256", sha512.Size256, sha512.New512_256},
	SHA3_224:   {"sha3_224", 28, sha3.New224},
	SHA3_256:   {"sha3_256", 32, sha3.New256},
	SHA3_384:   {"sha3_384", 48, sha3.New384},
	SHA3_512:   {"sha3_512", 64, sha3.New512},
	BLAKE2b512: {"blake2b512", blake2b.Size, mustHash(blake2b.New512)},
	BLAKE2s256: {"blake2s256", blake2s.Size, mustHash(blake2s.New256)},
	BLAKE3:     {"blake3", 32, func() hash.Hash { return blake3.New() }},
}

var byName = func() map[string]Algorithm {
	m := make(map[string]Algorithm, len(registry))
	for id, info := range registry {
		m[info.name] = id
	}
	return m
}()

// mustHash adapts a constructor that can fail (blake2b/blake2s take an
// optional key) into the no-argument form the registry expects, since none
// of our variants are keyed.
func mustHash(new func([]byte) (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := new(nil)
		if err != nil {
			// Only fails for an invalid key length; we always pass nil.
			panic(fmt.Sprintf("merkle: unkeyed hash construction failed: %v", err))
		}
		return h
	}
}

// ParseAlgorithm looks up an Algorithm by its CLI name (e.g. "sha256").
func ParseAlgorithm(name string) (Algorithm, error) {
	id, ok := byName[name]
	if !ok {
		return 0, &BadParamsError{Reason: fmt.Sprintf("unknown hash function %q", name)}
	}
	return id, nil
}

// String returns the CLI name of the algorithm.
func (a Algorithm) String() string {
	if info, ok := registry[a]; ok {
		return info.name
	}
	return fmt.Sprintf("Algorithm(%d)", a)
}

// Size returns H, the fixed digest length in bytes produced by a.
func (a Algorithm) Size() int {
	return registry[a].size
}

func (a Algorithm) valid() bool {
	_, ok := registry[a]
	return ok
}

// AlgorithmNames lists all supported CLI names, in the canonical order used
// by --help output.
func AlgorithmNames() []string {
	return []string{
		"crc32",
		"sha224", "sha256", "sha384", "sha512", "sha512_224", "sha512_256",
		"sha3_224", "sha3_256", "sha3_384", "sha3_512",
		"blake2b512", "blake2s256", "blake3",
	}
}

const (
	leafTag     byte = 0x00
	interiorTag byte = 0x01
)

// Hasher is a fresh, single-use digest for one leaf or interior node. Each
// worker goroutine owns its own Hasher; Hasher values must never be shared
// across goroutines.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates a fresh Hasher for algo.
func NewHasher(algo Algorithm) *Hasher {
	return &Hasher{h: registry[algo].newHash()}
}

// Absorb feeds bytes into the digest. It never fails: the underlying
// hash.Hash implementations used here cannot error on Write.
func (h *Hasher) Absorb(p []byte) {
	h.h.Write(p) //nolint:errcheck // hash.Hash.Write never returns an error
}

// Finalize consumes the Hasher and returns its digest.
func (h *Hasher) Finalize() []byte {
	return h.h.Sum(nil)
}

// LeafHash computes H(0x00 || block) per the leaf hash invariant.
func LeafHash(algo Algorithm, block []byte) []byte {
	h := NewHasher(algo)
	h.Absorb([]byte{leafTag})
	h.Absorb(block)
	return h.Finalize()
}

// InteriorHash computes H(0x01 || child_0 || ... || child_{m-1}) per the
// interior hash invariant. A single child is not elided: it is deliberate
// domain separation and required for ledger compatibility.
func InteriorHash(algo Algorithm, children [][]byte) []byte {
	h := NewHasher(algo)
	h.Absorb([]byte{interiorTag})
	for _, c := range children {
		h.Absorb(c)
	}
	return h.Finalize()
}
