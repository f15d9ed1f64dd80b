// Package pipeline resolves one request path against the current policy
// snapshot and the server root. Handle is the single entry point; it returns
// exactly one Outcome per request and never fails past its own boundary.
//
// Resolution order, first match wins:
//
//  0. "/" is rewritten to "/index.html", then joined under the server root
//  1. a blacklisted prefix yields 403
//  2. a missing path (or one that escapes the root) yields 404
//  3. a directory yields 404; directories are never listed
//  4. a read failure or a zero-byte file yields 404 with the empty page
//  5. anything else is served with 200 and the registry's content type
package pipeline
