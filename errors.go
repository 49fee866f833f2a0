// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

import "github.com/cockroachdb/errors"

// ErrNameNotFound means that a cross-reference in the
// scene description named a resource or job that does not
// exist. It indicates a malformed description.
var ErrNameNotFound = errors.New("scene: name not found")

// ErrNoMemoryType means that no device memory type
// satisfies the properties a resource requires.
var ErrNoMemoryType = errors.New("scene: no suitable memory type")

// ErrMappingFailed means that host mapping of a buffer
// failed.
var ErrMappingFailed = errors.New("scene: buffer mapping failed")

// ErrUnsupported means that the description used a
// command the interpreter does not implement yet.
var ErrUnsupported = errors.New("scene: unsupported command")

// notFound marks a name-resolution failure with
// ErrNameNotFound so callers can test for it with
// errors.Is.
func notFound(kind, name string) error {
	return errors.Wrapf(ErrNameNotFound, "scene: %s %q not found", kind, name)
}

// unsupported marks a not-yet-implemented command with
// ErrUnsupported.
func unsupported(what string) error {
	return errors.Wrapf(ErrUnsupported, "scene: %s is not supported", what)
}
