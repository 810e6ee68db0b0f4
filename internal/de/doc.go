// Package de owns differential-expression scoring for cluster separability.
//
// Responsibilities: the DE threshold parameter set, the Tester contract for
// per-gene two-group tests, a default Welch t-test implementation with
// Benjamini-Hochberg correction, and the cluster-pair separability verdict
// built on top of them.
package de
