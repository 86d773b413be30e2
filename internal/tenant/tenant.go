// Package tenant binds the tenant of the authenticated principal to the
// request context so that every operation performed for the request,
// including concurrent sub-operations, sees the same tenant.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoTenantBound is returned when tenant-scoped work runs outside a
	// bound scope. It is a programming error, not a transient failure.
	ErrNoTenantBound = errors.New("no tenant bound to context")

	// ErrTenantRebind is returned when a scope tries to bind a different tenant.
	ErrTenantRebind = errors.New("tenant already bound to context")

	// ErrEmptyTenant is returned when binding an empty tenant id.
	ErrEmptyTenant = errors.New("tenant id is empty")
)

// Binding is the tenant bound to a request.
type Binding struct {
	TenantID  string
	Subdomain string
}

type bindingKey struct{}

// WithTenant returns a context carrying b. Binding the tenant that is
// already bound is a no-op; binding another one fails with ErrTenantRebind.
func WithTenant(ctx context.Context, b Binding) (context.Context, error) {
	if b.TenantID == "" {
		return ctx, ErrEmptyTenant
	}
	if current, ok := ctx.Value(bindingKey{}).(Binding); ok {
		if current.TenantID != b.TenantID {
			return ctx, fmt.Errorf("%w: bound %q, requested %q", ErrTenantRebind, current.TenantID, b.TenantID)
		}
		return ctx, nil
	}
	return context.WithValue(ctx, bindingKey{}, b), nil
}

// Run executes scope with tenantID bound and returns its error.
func Run(ctx context.Context, tenantID string, scope func(context.Context) error) error {
	bound, err := WithTenant(ctx, Binding{TenantID: tenantID})
	if err != nil {
		return err
	}
	return scope(bound)
}

// FromContext returns the bound tenant or ErrNoTenantBound.
func FromContext(ctx context.Context) (Binding, error) {
	b, ok := ctx.Value(bindingKey{}).(Binding)
	if !ok {
		return Binding{}, ErrNoTenantBound
	}
	return b, nil
}

// ID returns the bound tenant id, or "" when none is bound.
func ID(ctx context.Context) string {
	b, _ := FromContext(ctx)
	return b.TenantID
}

// MustFromContext is FromContext for code that cannot run without a tenant.
// It panics with ErrNoTenantBound.
func MustFromContext(ctx context.Context) Binding {
	b, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return b
}

// Go runs fns concurrently under the tenant bound to ctx and waits for all
// of them. The first error cancels the shared context and is returned.
func Go(ctx context.Context, fns ...func(context.Context) error) error {
	if _, err := FromContext(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			return fn(gctx)
		})
	}
	return g.Wait()
}
