// Package repo is the high-level entry point for saving, loading, tracking
// and cleaning keyed objects. Each operation opens a mount for the key,
// runs one serialization traversal and closes the mount again, so ignore
// lists and directory pruning stay consistent without the caller managing
// brackets by hand.
package repo
