package access

import (
	"testing"

	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileWith(role models.Role, tenant *uuid.UUID) *models.Profile {
	return &models.Profile{ID: uuid.New(), Email: "a@example.com", Role: role, TenantID: tenant, Status: models.ProfileStatusActive}
}

func TestScopeFor_SuperAdminRequiresTenant(t *testing.T) {
	p := profileWith(models.RoleSuperAdmin, nil)

	scope, err := ScopeFor(p, nil)
	assert.ErrorIs(t, err, common.ErrTenantRequired)
	assert.True(t, scope.IsEmpty())

	nilID := uuid.Nil
	_, err = ScopeFor(p, &nilID)
	assert.ErrorIs(t, err, common.ErrTenantRequired)

	target := uuid.New()
	scope, err = ScopeFor(p, &target)
	require.NoError(t, err)
	assert.Equal(t, target, scope.TenantID())
	assert.False(t, scope.IsPublic())
}

func TestScopeFor_TenantMembersPinnedToOwnTenant(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	for _, role := range []models.Role{models.RoleTenantAdmin, models.RoleUser} {
		p := profileWith(role, &own)

		scope, err := ScopeFor(p, nil)
		require.NoError(t, err)
		assert.Equal(t, own, scope.TenantID(), role)

		scope, err = ScopeFor(p, &own)
		require.NoError(t, err)
		assert.Equal(t, own, scope.TenantID(), role)

		scope, err = ScopeFor(p, &other)
		require.NoError(t, err)
		assert.True(t, scope.IsEmpty(), "a foreign tenant request must match nothing for %s", role)
	}
}

func TestScopeFor_UnboundUserSeesNothing(t *testing.T) {
	scope, err := ScopeFor(profileWith(models.RoleUser, nil), nil)
	require.NoError(t, err)
	assert.True(t, scope.IsEmpty())
	assert.Equal(t, "", scope.String())
}

func TestScopeFor_Errors(t *testing.T) {
	_, err := ScopeFor(nil, nil)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	tenant := uuid.New()
	_, err = ScopeFor(profileWith(models.Role("owner"), &tenant), nil)
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestPublicScope(t *testing.T) {
	tenant := uuid.New()
	scope := PublicScope(tenant)
	assert.True(t, scope.IsPublic())
	assert.Equal(t, tenant.String(), scope.String())
	assert.True(t, EmptyScope().IsEmpty())
}
