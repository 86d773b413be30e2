// Package middleware provides the gatekeeper's request pipeline.
//
// A Pipeline is an explicit ordered list of named stages built once at
// startup:
//
//	p := middleware.NewPipeline(
//	    middleware.Stage{Name: "recovery", Middleware: middleware.Recovery(logger)},
//	    middleware.Stage{Name: "request-id", Middleware: middleware.RequestID()},
//	    middleware.Stage{Name: "rate-limit", Middleware: middleware.RateLimit(limiter, extractor)},
//	)
//	handler := p.Then(router)
//
// Stages that reject a request write the JSON error envelope via WriteError
// and do not call the rest of the pipeline.
package middleware
