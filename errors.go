// Package cfb implements the Container Façade: the top-level reader,
// writer, and editor lifecycle for OLE Compound File Binary containers.
package cfb

import "fmt"

// Code names a fatal condition from the container engine's error
// taxonomy. Every Code is itself an error, so a bare Code can be returned,
// compared with errors.Is, or enriched via WithMessage/Wrap.
type Code string

const (
	ErrHeader         Code = "Header"
	ErrInvalidMagic   Code = "InvalidMagic"
	ErrInvalidBom     Code = "InvalidBom"
	ErrMasterFat      Code = "MasterFat"
	ErrNormalFat      Code = "NormalFat"
	ErrMiniFat        Code = "MiniFat"
	ErrLargeNormalFat Code = "LargeNormalFat"
	ErrLargeMiniFat   Code = "LargeMiniFat"
	ErrNoMiniFat      Code = "NoMiniFat"
	ErrMasterLoop     Code = "MasterLoop"
	ErrNormalLoop     Code = "NormalLoop"
	ErrDirLoop        Code = "DirLoop"
	ErrDirEntry       Code = "DirEntry"
	ErrNotFound       Code = "NotFound"
	ErrNotStream      Code = "NotStream"
	ErrNotStorage     Code = "NotStorage"
	ErrNameCollision  Code = "NameCollision"
	// ErrReadOnly sits outside the taxonomy above; it's a pragmatic
	// addition for mutation attempts against a Reader, grounded on the
	// ioFlags.Write() guard that drivers/common/basicstream.BasicStream
	// enforces before any mutating operation.
	ErrReadOnly Code = "ReadOnly"
)

// Error implements the `error` interface, returning the bare code name.
func (c Code) Error() string {
	return string(c)
}

// WithMessage attaches a human-readable message to c.
func (c Code) WithMessage(message string) Error {
	return containerError{code: c, message: fmt.Sprintf("%s: %s", c, message)}
}

// Wrap attaches an underlying cause to c.
func (c Code) Wrap(err error) Error {
	return containerError{code: c, message: fmt.Sprintf("%s: %s", c, err), cause: err}
}

// Error is a fatal container error: a Code plus an optional message and
// cause.
type Error interface {
	error
	Code() Code
	WithMessage(message string) Error
	Wrap(err error) Error
	Unwrap() error
}

type containerError struct {
	code    Code
	message string
	cause   error
}

func (e containerError) Error() string {
	if e.message != "" {
		return e.message
	}
	return string(e.code)
}

func (e containerError) Code() Code {
	return e.code
}

func (e containerError) WithMessage(message string) Error {
	return containerError{code: e.code, message: fmt.Sprintf("%s: %s", e.Error(), message), cause: e}
}

func (e containerError) Wrap(err error) Error {
	return containerError{code: e.code, message: fmt.Sprintf("%s: %s", e.Error(), err), cause: err}
}

func (e containerError) Unwrap() error {
	return e.cause
}

// Is lets errors.Is(err, cfb.ErrNotFound) match a containerError built
// from that Code, not just a bare Code value.
func (e containerError) Is(target error) bool {
	if c, ok := target.(Code); ok {
		return e.code == c
	}
	return false
}
