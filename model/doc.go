// Package model provides collection containers that manage storable
// elements transparently. Inserting a registered storable into a List, Dict
// or Runs wraps it in a record, so its payload lands in its own file while
// access through the container stays by-value.
//
// Containers defer cleanup: replacing or deleting an element moves the old
// record into an unused buffer, and the associated files are deleted in a
// batch on the next serialization. This keeps mutation cheap and makes
// cleanup participate in the same traversal that writes the manifest.
package model
