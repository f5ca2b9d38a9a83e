package access

import (
	"context"
	"errors"
	"testing"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// failingLocalities 模拟 localities 表不可读
type failingLocalities struct {
	repository.LocalitiesRepository
}

func (failingLocalities) ListLocalities(ctx context.Context) ([]domain.Locality, error) {
	return nil, errors.New("permission denied for table localities")
}

type fixture struct {
	mem      *repository.MemoryStore
	resolver *Resolver
	centro   *domain.Locality
	manga    *domain.Locality
}

func setup(t *testing.T) fixture {
	ctx := context.Background()
	mem := repository.NewMemoryStore()

	centro, err := mem.EnsureLocality(ctx, "Centro")
	require.NoError(t, err)
	manga, err := mem.EnsureLocality(ctx, "Mangabinha")
	require.NoError(t, err)

	mem.PutAccessLevel(domain.AccessLevel{ID: "agente", Name: "Agente", Permissions: []string{domain.PermissionDashboard, domain.PermissionForm}})
	mem.PutUser(domain.User{ID: "admin", Role: domain.RoleAdmin, Active: true})
	mem.PutUser(domain.User{ID: "maria", Role: domain.RoleUser, AccessLevelID: "agente", Active: true})
	mem.PutUser(domain.User{ID: "joao", Role: domain.RoleUser, AccessLevelID: "agente", Active: true})
	require.NoError(t, mem.GrantAccess(ctx, "maria", centro.ID))

	return fixture{
		mem:      mem,
		resolver: NewResolver(mem.AsStore(), zap.NewNop()),
		centro:   centro,
		manga:    manga,
	}
}

func TestResolveAccessibleLocalities_SingleGrant(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	scope := f.resolver.ResolveAccessibleLocalities(ctx, "maria")
	assert.False(t, scope.All)
	assert.False(t, scope.Degraded)
	assert.Equal(t, []string{"Centro"}, scope.Names())

	assert.True(t, f.resolver.HasAccess(ctx, "maria", "Centro"))
	assert.False(t, f.resolver.HasAccess(ctx, "maria", "Mangabinha"))
}

func TestHasAccess_ZeroGrantsSeesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	scope := f.resolver.ResolveAccessibleLocalities(ctx, "joao")
	assert.Empty(t, scope.Names())
	assert.False(t, scope.All)

	for _, name := range []string{"Centro", "Mangabinha", "Nunca Vista"} {
		assert.False(t, f.resolver.HasAccess(ctx, "joao", name), name)
	}
}

func TestHasAccess_AdminBypass(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.True(t, f.resolver.HasAccess(ctx, "admin", "Centro"))
	assert.True(t, f.resolver.HasAccess(ctx, "admin", "Nunca Vista"))

	scope := f.resolver.ResolveAccessibleLocalities(ctx, "admin")
	assert.True(t, scope.All)
	assert.True(t, scope.Contains("Qualquer"))
	assert.ElementsMatch(t, []string{"Centro", "Mangabinha"}, scope.Names())
}

func TestHasAccess_AdminBypassesBrokenTables(t *testing.T) {
	f := setup(t)
	store := f.mem.AsStore()
	store.Localities = failingLocalities{store.Localities}
	r := NewResolver(store, zap.NewNop())

	assert.True(t, r.HasAccess(context.Background(), "admin", "Centro"))
}

func TestResolve_FailsClosedWhenNameMapUnavailable(t *testing.T) {
	f := setup(t)
	store := f.mem.AsStore()
	store.Localities = failingLocalities{store.Localities}
	r := NewResolver(store, zap.NewNop())

	scope := r.ResolveAccessibleLocalities(context.Background(), "maria")
	assert.True(t, scope.Degraded)
	assert.Empty(t, scope.Names())
	assert.False(t, scope.Contains("Centro"))
}

func TestHasAccess_UnknownUser(t *testing.T) {
	f := setup(t)
	assert.False(t, f.resolver.HasAccess(context.Background(), "ghost", "Centro"))
}

func TestHasAccess_InactiveUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.mem.PutUser(domain.User{ID: "maria", Role: domain.RoleUser, Active: false})

	assert.False(t, f.resolver.HasAccess(ctx, "maria", "Centro"))
}

func TestScope_Filter(t *testing.T) {
	f := setup(t)
	scope := f.resolver.ResolveAccessibleLocalities(context.Background(), "maria")

	records := []domain.Record{{LocalityName: "Centro"}, {LocalityName: "Mangabinha"}, {LocalityName: "Centro"}}
	assert.Len(t, scope.Filter(records), 2)
}

func TestHasPermission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.True(t, f.resolver.HasPermission(ctx, "maria", domain.PermissionForm))
	assert.False(t, f.resolver.HasPermission(ctx, "maria", domain.PermissionAdmin))
	assert.True(t, f.resolver.HasPermission(ctx, "admin", domain.PermissionAdmin))
	assert.False(t, f.resolver.HasPermission(ctx, "ghost", domain.PermissionDashboard))
}

func TestAssignedLocalities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.mem.GrantAccess(ctx, "maria", f.manga.ID))

	u, scope, err := f.resolver.AssignedLocalities(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, []string{"Centro", "Mangabinha"}, u.AssignedLocalities)
	assert.True(t, scope.Contains("Mangabinha"))
}
