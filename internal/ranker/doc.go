// Package ranker fuses lexical and semantic retrieval into one ranked
// answer. Each scoring space keeps its native scale internally; hybrid
// fusion max-normalizes both sides before combining them, so neither
// space's magnitude dominates the other.
package ranker
