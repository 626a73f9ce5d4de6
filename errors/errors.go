package errors

import (
	"fmt"
	"strings"
)

// Op indicates which operation the error occurred in
type Op string

const (
	OpScan    Op = "scan"    // directory scanning
	OpParse   Op = "parse"   // header parsing
	OpLoad    Op = "load"    // module loading
	OpUnload  Op = "unload"  // module unloading
	OpResolve Op = "resolve" // dependency resolution
	OpEngine  Op = "engine"  // wasm engine operations
)

// Kind categorizes the error
type Kind string

const (
	KindDirectoryUnreadable  Kind = "directory_unreadable"
	KindHeaderInvalid        Kind = "header_invalid"
	KindModuleNotFound       Kind = "module_not_found"
	KindNotLoaded            Kind = "not_loaded"
	KindChecksumMismatch     Kind = "checksum_mismatch"
	KindLoadFailure          Kind = "load_failure"
	KindDependencyUnresolved Kind = "dependency_unresolved"
	KindCyclicDependency     Kind = "cyclic_dependency"
	KindCapacityExceeded     Kind = "capacity_exceeded"
)

// Error is the structured error type used throughout hdep
type Error struct {
	Cause  error
	Op     Op
	Kind   Kind
	Module string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Op))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// Op matches any Op of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && e.Op != t.Op {
		return false
	}
	return e.Kind == t.Kind
}

// Err returns a bare matcher error for this Kind, for use with errors.Is.
func (k Kind) Err() *Error {
	return &Error{Kind: k}
}

// IsKind reports whether err (or any error it wraps) has the given Kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// New creates a structured error
func New(op Op, kind Kind, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Op: op, Kind: kind, Detail: detail}
}

// Convenience constructors for common error patterns

// DirectoryUnreadable creates a scan error for an unreadable module directory
func DirectoryUnreadable(dir string, cause error) *Error {
	return &Error{
		Op:     OpScan,
		Kind:   KindDirectoryUnreadable,
		Detail: fmt.Sprintf("cannot open module directory %s", dir),
		Cause:  cause,
	}
}

// HeaderInvalid creates a header parse error
func HeaderInvalid(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Op: OpParse, Kind: KindHeaderInvalid, Detail: detail}
}

// NotFound creates a module lookup error
func NotFound(op Op, module string) *Error {
	return &Error{Op: op, Kind: KindModuleNotFound, Module: module}
}

// NotLoaded creates an unload error for a module that is not loaded
func NotLoaded(module string) *Error {
	return &Error{Op: OpUnload, Kind: KindNotLoaded, Module: module}
}

// ChecksumMismatch creates a post-load integrity error
func ChecksumMismatch(module string, want, got uint32) *Error {
	return &Error{
		Op:     OpLoad,
		Kind:   KindChecksumMismatch,
		Module: module,
		Detail: fmt.Sprintf("stored 0x%08x, computed 0x%08x", want, got),
	}
}

// LoadFailure wraps an engine diagnostic from a failed module open
func LoadFailure(module string, cause error) *Error {
	return &Error{Op: OpLoad, Kind: KindLoadFailure, Module: module, Cause: cause}
}

// UnloadFailure wraps an engine diagnostic from a failed library close
func UnloadFailure(module string, cause error) *Error {
	return &Error{Op: OpUnload, Kind: KindLoadFailure, Module: module, Cause: cause}
}

// DependencyUnresolved wraps a failed dependency load
func DependencyUnresolved(module, dependency string, cause error) *Error {
	return &Error{
		Op:     OpResolve,
		Kind:   KindDependencyUnresolved,
		Module: module,
		Detail: fmt.Sprintf("dependency %s", dependency),
		Cause:  cause,
	}
}

// CyclicDependency reports a dependency chain that re-enters a module
// whose load is already in progress.
func CyclicDependency(module string, chain []string) *Error {
	return &Error{
		Op:     OpResolve,
		Kind:   KindCyclicDependency,
		Module: module,
		Detail: strings.Join(chain, " -> "),
	}
}

// CapacityExceeded reports modules dropped from a scan once the catalog
// was full.
func CapacityExceeded(capacity, dropped int) *Error {
	return &Error{
		Op:     OpScan,
		Kind:   KindCapacityExceeded,
		Detail: fmt.Sprintf("catalog full at %d modules, %d dropped", capacity, dropped),
	}
}
