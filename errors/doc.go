// Package errors provides structured error types for the hdep library.
//
// Errors are categorized by Op (the operation that failed) and Kind
// (error category). The Error type carries the module name involved,
// a human-readable detail, and a cause chain.
//
// Use the convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.OpLoad, "encrypt")
//	err := errors.LoadFailure("core", cause)
//
// All errors implement the standard error interface and support
// errors.Is/As. Matching is by Kind, and by Op too when the target
// names one:
//
//	if errors.IsKind(err, errors.KindChecksumMismatch) { ... }
package errors
