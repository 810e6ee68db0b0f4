// Package consensus estimates clustering robustness by repeating the split
// pipeline over random cell subsamples and aggregating, per cell pair, how
// often the two cells land in the same cluster.
//
// Responsibilities:
//   - Pair-count accumulation with associative merging across workers.
//   - The bootstrap aggregator: N subsample iterations on a worker pool,
//     consensus labels from the co-cluster ratio matrix, a final
//     expression-backed merge pass.
//   - Label refinement against the co-cluster matrix.
//   - Per-iteration JSON artifacts for resumable runs, and a SQLite run
//     registry.
//
// Key types: PairCounts, Aggregator, Result, RunStore.
//
// Dependency rule: consensus sits on top of exprmat, de and cluster; nothing
// in those packages may import it.
package consensus
