// Package server hosts the gatekeeper's HTTP listener and the gin engine
// behind the request pipeline.
//
// The engine serves the introspection routes (/health, /ready, the metrics
// path and /api/gatekeeper/context). Every other route either answers with
// a 404 error envelope or, when an upstream is configured, is forwarded to
// it with the verified identity attached as headers.
package server
