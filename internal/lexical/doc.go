// Package lexical implements TF-IDF keyword search over conversation turns.
//
// The index is an in-memory inverted index partitioned per user: each user
// shard owns its documents, postings, and IDF table, so term statistics
// computed for one user never influence another user's scores.
//
// # Scoring
//
// score(query, turn) = Σ tf(term, turn) · idf(term) over the terms the
// query and the turn share. IDF uses the smoothed form
// log((1+N)/(1+df)) + 1, which is strictly positive, keeping every term
// weight non-negative.
//
// # IDF Staleness
//
// Indexing and eviction mark the shard dirty; the first search afterwards
// rebuilds the IDF table (collapsed by singleflight under concurrency).
// A search therefore never runs against a table staler than the writes
// that preceded it.
//
// # Korean Text
//
// The tokenizer splits on non-letter runes, which keeps Hangul syllable
// runs whole, and strips one trailing particle (조사) from multi-syllable
// Hangul tokens so inflected forms index to their stem.
package lexical
