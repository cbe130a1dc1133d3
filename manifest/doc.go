// Package manifest defines the serialized form produced by the persistence
// engine: a tree of primitive values in which registered types appear as
// tagged nodes. The tree is JSON-compatible and human readable; a manifest
// written to disk can be inspected and edited with ordinary tools.
//
// Node is a sealed union. Only String, Int, Float, Bool, Null, List, Map and
// Tagged implement it. Tagged nodes carry the registered type name of the
// value they encode and serialize as
//
//	{"_ser__type": "<name>", "_ser__content": <content>}
//
// Two encoders are provided: Encode produces indented JSON for manifests on
// disk, Canonical produces a deterministic single-line encoding with sorted
// keys and NFC-normalized strings, used wherever byte-stable output matters
// (golden tests, content comparison).
package manifest
