package tenant_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/gearboxhq/gearbox/pkg/registry"
	"github.com/gearboxhq/gearbox/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_ModelRouting(t *testing.T) {
	t.Parallel()

	var opens atomic.Int64

	manager := newManager(t, lazyOpen(&opens))

	scope := tenant.NewScope(manager, 5)
	defer scope.Close()

	mainModel, err := scope.Model(context.Background(), registry.ModelAccount)
	require.NoError(t, err)
	assert.Equal(t, registry.ModelAccount, mainModel.Name())
	assert.Equal(t, int64(0), manager.ActiveRequests(5), "main models do not touch the tenant connection")

	tenantModel, err := scope.Model(context.Background(), registry.ModelVehicle)
	require.NoError(t, err)
	assert.Equal(t, "vehicles", tenantModel.Table())
	assert.Equal(t, int64(1), manager.ActiveRequests(5))
}

func TestScope_ModelUnknownName(t *testing.T) {
	t.Parallel()

	var opens atomic.Int64

	manager := newManager(t, lazyOpen(&opens))

	scope := tenant.NewScope(manager, 5)
	defer scope.Close()

	_, err := scope.Model(context.Background(), registry.Name("spaceship"))
	assert.ErrorIs(t, err, registry.ErrUnknownModel)
	assert.Equal(t, int64(0), opens.Load(), "unknown names must not open connections")
}

func TestScope_TenantModelWithoutTenant(t *testing.T) {
	t.Parallel()

	var opens atomic.Int64

	manager := newManager(t, lazyOpen(&opens))

	scope := tenant.NewScope(manager, tenant.PlatformTenantID)
	defer scope.Close()

	_, err := scope.Model(context.Background(), registry.ModelVehicle)
	assert.ErrorIs(t, err, tenant.ErrTenantContextMissing)

	// Main models are still reachable for platform callers.
	model, err := scope.Model(context.Background(), registry.ModelPlan)
	require.NoError(t, err)
	assert.Equal(t, registry.ModelPlan, model.Name())
}
