// Package mount implements path resolution for the persistence engine.
//
// A Target describes a file location relative to some directory as a set of
// optional fields (stem, suffix, subdirectory). Fields left unset act as
// holes that later merge steps fill in, which is how callers request "a file
// named after this key" while the engine supplies the rest.
//
// A Mount owns a directory subtree for the duration of an open/close
// bracket. It turns Targets into concrete paths, resolves collisions between
// writers according to a configurable policy, records every file it touched
// in per-directory ignore lists, and prunes directories it created that end
// up empty.
//
// The root marker directory (".cairn") anchors all mounts: FindRoot walks
// upward from the working directory looking for it, the way version control
// tools locate their repository root.
package mount
