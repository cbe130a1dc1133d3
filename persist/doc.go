// Package persist implements the object-persistence core: a type registry,
// a recursive serialization engine over manifest trees, and the Record type
// that defers payload file I/O until content is accessed.
//
// The engine never fails because of a caller-supplied hook. A hook that
// errors, a missing codec or an unknown type tag all degrade to an invalid
// sentinel placed exactly where the failed value would have gone. Sentinels
// are themselves serializable, so a manifest containing failures still
// writes and reads back losslessly and can be retried later. The one opt-in
// exception is strict mode, which turns sentinel creation into an immediate
// error for debugging.
//
// All state is explicit: a Registry is constructed once at process start and
// threaded through Contexts; there are no package-level registration tables.
package persist
