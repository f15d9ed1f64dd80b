// Package mimetype maps file extensions to Content-Type values. A Registry is
// built once per policy snapshot from the built-in table plus the operator's
// overrides, and is read concurrently by request handlers afterwards.
package mimetype
