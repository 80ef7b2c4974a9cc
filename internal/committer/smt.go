// Package committer implements §4.6: a sparse Merkle tree over
// Blake2b-256-hashed leaf keys, committing account balances and
// per-symbol order book summaries after every event, and producing a
// proof bundle (old/new leaf values plus Merkle paths) a downstream
// verifier can check without holding the whole tree.
package committer

import (
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Depth is the key space in bits — a Blake2b-256 digest, so every leaf
// key and every Merkle path has exactly this many levels.
const Depth = 256

// Hash is a 32-byte Blake2b-256 digest, used for both leaf keys and
// node hashes.
type Hash [32]byte

var emptyHash [Depth + 1]Hash

func init() {
	// emptyHash[0] is the hash of an absent leaf; emptyHash[d] is the
	// root of an empty subtree d levels tall.
	emptyHash[0] = blake2b.Sum256([]byte("galois:empty-leaf"))
	for d := 1; d <= Depth; d++ {
		emptyHash[d] = hashNode(emptyHash[d-1], emptyHash[d-1])
	}
}

func hashLeaf(key Hash, value []byte) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("galois:leaf"))
	h.Write(key[:])
	h.Write(value)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashNode(left, right Hash) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("galois:node"))
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// LeafKey hashes an arbitrary byte identifier down to a Depth-bit tree
// address.
func LeafKey(domainTag string, parts ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(domainTag))
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// bit returns the bit of key at position pos (0 = most significant).
func bit(key Hash, pos int) int {
	byteIdx := pos / 8
	bitIdx := 7 - pos%8
	return int((key[byteIdx] >> uint(bitIdx)) & 1)
}

type leafEntry struct {
	key   Hash
	value []byte
}

// subtreeRoot computes the root of the subtree rooted at the given
// depth (number of bits already consumed from the MSB side), over
// leaves that are pre-sorted by key and all share that depth-bit
// prefix.
func subtreeRoot(leaves []leafEntry, depth int) Hash {
	if len(leaves) == 0 {
		return emptyHash[Depth-depth]
	}
	if depth == Depth {
		return hashLeaf(leaves[0].key, leaves[0].value)
	}
	split := sort.Search(len(leaves), func(i int) bool {
		return bit(leaves[i].key, depth) == 1
	})
	left := subtreeRoot(leaves[:split], depth+1)
	right := subtreeRoot(leaves[split:], depth+1)
	return hashNode(left, right)
}

// subtreePath collects, for the path down to target, the sibling hash
// at every level from depth 0 (root's children) to Depth-1 (the
// leaf's immediate sibling).
func subtreePath(leaves []leafEntry, depth int, target Hash, path *[Depth]Hash) {
	if depth == Depth {
		return
	}
	split := sort.Search(len(leaves), func(i int) bool {
		return bit(leaves[i].key, depth) == 1
	})
	leftLeaves, rightLeaves := leaves[:split], leaves[split:]
	if bit(target, depth) == 0 {
		path[depth] = subtreeRoot(rightLeaves, depth+1)
		subtreePath(leftLeaves, depth+1, target, path)
	} else {
		path[depth] = subtreeRoot(leftLeaves, depth+1)
		subtreePath(rightLeaves, depth+1, target, path)
	}
}

// VerifyPath recomputes the root implied by leafValue (nil means the
// leaf is absent) at key, given its sibling path, and reports whether
// it equals root. A verifier uses this to check one ProofEntry without
// access to the rest of the tree.
func VerifyPath(root Hash, key Hash, leafValue []byte, path [Depth]Hash) bool {
	var cur Hash
	if leafValue == nil {
		cur = emptyHash[0]
	} else {
		cur = hashLeaf(key, leafValue)
	}
	for d := Depth - 1; d >= 0; d-- {
		if bit(key, d) == 0 {
			cur = hashNode(cur, path[d])
		} else {
			cur = hashNode(path[d], cur)
		}
	}
	return cur == root
}
