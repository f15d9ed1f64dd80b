// Package docroot owns the filesystem primitives behind static serving:
// joining request paths onto the server root, refusing joins that escape it,
// and the exists/is-directory/read-all checks the resolution pipeline runs.
// Higher layers never touch os directly so tests can swap in a fake tree.
package docroot
