// Package exprmat owns the expression-matrix data model for the clustering
// pipeline.
//
// Responsibilities: labelled gene × cell matrices, label-indexed pair-matrix
// access, per-cluster aggregate statistics (sums, means, tau specificity),
// and sparse-aware Pearson correlation.
// Key types: Matrix, Labeled, Sparse.
//
// Dependency rule: exprmat is a leaf package. No clustering, DE or storage
// code is allowed here.
package exprmat
