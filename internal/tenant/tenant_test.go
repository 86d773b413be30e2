package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTenant(t *testing.T) {
	t.Parallel()

	ctx, err := WithTenant(context.Background(), Binding{TenantID: "tenant-a", Subdomain: "shop-a"})
	require.NoError(t, err)

	b, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, Binding{TenantID: "tenant-a", Subdomain: "shop-a"}, b)

	same, err := WithTenant(ctx, Binding{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Equal(t, "shop-a", MustFromContext(same).Subdomain)

	_, err = WithTenant(ctx, Binding{TenantID: "tenant-b"})
	assert.ErrorIs(t, err, ErrTenantRebind)
	assert.Equal(t, "tenant-a", ID(ctx))

	_, err = WithTenant(context.Background(), Binding{})
	assert.ErrorIs(t, err, ErrEmptyTenant)
}

func TestFromContext_Unbound(t *testing.T) {
	t.Parallel()

	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoTenantBound)
	assert.Empty(t, ID(context.Background()))

	assert.PanicsWithError(t, ErrNoTenantBound.Error(), func() {
		MustFromContext(context.Background())
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	var seen string
	err := Run(context.Background(), "tenant-a", func(ctx context.Context) error {
		seen = MustFromContext(ctx).TenantID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", seen)

	boom := errors.New("boom")
	assert.ErrorIs(t, Run(context.Background(), "tenant-a", func(context.Context) error { return boom }), boom)

	err = Run(context.Background(), "tenant-a", func(ctx context.Context) error {
		return Run(ctx, "tenant-b", func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrTenantRebind)
}

func TestGo_SubOperationsSeeSameTenant(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), "tenant-a", func(ctx context.Context) error {
		var mu sync.Mutex
		seen := make([]string, 0, 8)

		fns := make([]func(context.Context) error, 8)
		for i := range fns {
			fns[i] = func(ctx context.Context) error {
				b, err := FromContext(ctx)
				if err != nil {
					return err
				}
				mu.Lock()
				seen = append(seen, b.TenantID)
				mu.Unlock()
				return nil
			}
		}

		if err := Go(ctx, fns...); err != nil {
			return err
		}
		assert.Len(t, seen, 8)
		for _, id := range seen {
			assert.Equal(t, "tenant-a", id)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGo_Unbound(t *testing.T) {
	t.Parallel()

	called := false
	err := Go(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNoTenantBound)
	assert.False(t, called)
}

func TestGo_FirstErrorReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := Run(context.Background(), "tenant-a", func(ctx context.Context) error {
		return Go(ctx,
			func(context.Context) error { return boom },
			func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		)
	})
	assert.ErrorIs(t, err, boom)
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	t.Parallel()

	const requests = 100
	var wg sync.WaitGroup
	errs := make(chan error, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("tenant-%d", i)
			errs <- Run(context.Background(), id, func(ctx context.Context) error {
				return Go(ctx, func(ctx context.Context) error {
					if got := ID(ctx); got != id {
						return fmt.Errorf("request %d saw %q", i, got)
					}
					return nil
				})
			})
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
