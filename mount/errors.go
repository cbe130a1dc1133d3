package mount

import "fmt"

// RootError indicates that no root marker directory could be located.
type RootError struct {
	Start string
}

func (e *RootError) Error() string {
	return fmt.Sprintf("no %s directory found above %q; run \"cairn init\" to create one", RootDir, e.Start)
}

// TargetError indicates invalid use of a Target, such as processing an
// incomplete one or specifying a name together with a stem or suffix.
type TargetError struct {
	Target Target
	Reason string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %s: %s", e.Target, e.Reason)
}

// MountError indicates a path access outside the mount's directory subtree.
type MountError struct {
	Mount string
	Path  string
}

func (e *MountError) Error() string {
	return fmt.Sprintf("path %q is not contained within mount %q", e.Path, e.Mount)
}

// UserQuitError is returned when a collision was resolved with the quit
// policy, cancelling the serialization pass in progress.
type UserQuitError struct {
	Target Target
}

func (e *UserQuitError) Error() string {
	return fmt.Sprintf("target %s was already written this session; operation cancelled", e.Target)
}
