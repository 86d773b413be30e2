package middleware

import (
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// Stage is a named element of the request pipeline.
type Stage struct {
	Name       string
	Middleware Middleware
}

// Pipeline is an ordered, immutable list of stages. The first stage sees the
// request first. A stage short-circuits by writing a response without
// calling the next handler.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a pipeline from stages, skipping nil middleware.
func NewPipeline(stages ...Stage) *Pipeline {
	p := &Pipeline{stages: make([]Stage, 0, len(stages))}
	for _, s := range stages {
		if s.Middleware != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Then wraps h so that stages run in declaration order before it.
func (p *Pipeline) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i].Middleware(h)
	}
	return h
}

// Names returns the stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// String renders the order as "a -> b -> c".
func (p *Pipeline) String() string {
	return strings.Join(p.Names(), " -> ")
}
