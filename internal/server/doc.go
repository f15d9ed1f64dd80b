// Package server hosts the Fiber HTTP service for the static file server.
// It owns the middleware chain (panic recovery, request IDs), adapts each
// request into a pipeline.Request, forwards the resulting audit event, and
// writes the outcome back unchanged. Routing decisions beyond the optional
// /-/ diagnostics prefix belong to the pipeline, so keep this package thin
// and accept explicit dependencies.
package server
