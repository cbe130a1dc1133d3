// Package cairn persists Go objects as directory trees of payload files
// described by a human-readable JSON manifest.
//
// A value is serialized into a manifest tree (package manifest); types
// registered as storable are written to their own files and replaced in the
// manifest by a record that remembers the file's location (package persist).
// Containers in package model promote storable elements to records
// transparently and clean up payload files that fall out of use. Package
// repo ties it together into a keyed save/load session rooted at a marker
// directory on disk (package mount).
//
// The top-level package only wires these pieces: NewRegistry builds a
// registry with all built-in codecs, New and Open start sessions over it.
//
// A minimal session:
//
//	reg := cairn.NewRegistry()
//	persist.RegisterStorableFor(reg, "weights", ".bin", writeWeights, readWeights)
//
//	s := cairn.Open(reg)
//	if err := s.Save("experiment", result); err != nil {
//		...
//	}
//	back, err := s.Load("experiment")
//
// Failures during serialization never abort a save: the failed value is
// replaced by a sentinel that records what went wrong, and the rest of the
// tree is written normally.
package cairn
