// Package db opens and migrates the SQLite database backing the consensus
// run registry.
//
// Responsibilities:
//   - Open a SQLite database with the pragmas the store layer expects
//     (WAL journaling, foreign keys, a busy timeout).
//   - Apply schema migrations embedded in the binary via golang-migrate.
//
// Key types: DB.
//
// Dependency rule: db knows nothing about matrices or clustering; it only
// provides a migrated *sql.DB to the consensus store.
package db
