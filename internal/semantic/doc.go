// Package semantic implements embedding similarity search over
// conversation turns.
//
// Vectors are normalized to unit length when indexed, so cosine similarity
// reduces to a dot product at query time. The embedding dimension is fixed
// when the index is constructed; a vector of any other length is treated
// as corruption (types.ErrIndexCorruption), never silently padded or
// truncated.
//
// Like the lexical index, state is partitioned per user, so concurrent
// sessions of different users never contend.
package semantic
