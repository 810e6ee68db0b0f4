// Package cluster owns the iterative split/merge clustering engines.
//
// Responsibilities: the reduction and partition collaborator contracts with
// their default implementations (PCA reduction, k-means and affinity
// partitioners), the work-queue split engine gated by DE separability, the
// mutually-nearest-pair merge engine, and dendrogram construction over
// cluster medians.
// Key types: Assignment, SplitEngine, MergeEngine.
//
// Dependency rule: cluster may depend on exprmat and de, never on consensus
// or storage.
package cluster
